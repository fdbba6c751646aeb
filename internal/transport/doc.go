// Package transport provides the HTTP notification surface a shard
// node uses to tell an external coordinator about shard lifecycle
// events, and the generic JSON request helpers that surface is built
// on.
//
// # Overview
//
// A Shard's own job ends at "tell the parent ShardInitialized or
// ShardStopped" (see internal/shard). Getting that notification off
// the node and onto a coordinator process is this package's job: one
// small Notifier type wrapping PostJSON, plus the two payload shapes
// the demo harness in cmd/shardnode posts.
//
// # Wire shape
//
//	                     в”Ңв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”җ
//	                     в”Ӯ  external coordinator    в”Ӯ
//	                     в””в”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв–˛в”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”ҳ
//	                                        в”Ӯ POST /shards/{initialized,stopped}
//	                           в”Ңв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”ҙв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”җ
//	                           в”Ӯ         Notifier              в”Ӯ
//	                           в”Ӯ  (holds the coordinator addr) в”Ӯ
//	                           в””в”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв–Ів”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”ҳ
//	                                    в”Ӯ ShardInitialized / ShardStopped
//	                                в”Ңв”Җв”Җв”Җв”ҙв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Ӯ
//	                                в”Ӯ          shard.Shard               в”Ӯ
//	                                в””в”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”Җв”ҳ
//
// PostJSON/GetJSON are generic JSON request helpers. Notifier is the
// only caller of PostJSON; cmd/shardnode's inbound admin surface does
// not use this package and encodes its own JSON replies.
package transport

// Package journal defines the durable write-ahead log and snapshot
// store a persistent Shard depends on, plus two concrete backends: an
// in-memory pair for tests, and a NATS
// JetStream-backed pair for production use.
//
// The persistent Shard treats events as the ground truth and the
// in-memory entity registry as a cache rebuildable by replay: Journal
// stores an ordered log of EntityStarted/EntityStopped events per
// persistence id, and SnapshotStore stores periodic point-in-time
// snapshots of the remembered entity set so replay doesn't have to
// start from the beginning of time.
package journal

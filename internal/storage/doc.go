// Package storage provides the key-value storage backing demo entity
// workers in cmd/shardnode.
//
// # Overview
//
// EntityStore is a single in-memory store shared by every entity
// worker in a shardnode process, with each entity's keys kept in an
// isolated namespace. One shared store (rather than one per worker)
// means an entity that passivates and later respawns sees its prior
// state.
//
// # Thread safety
//
// All operations take a single mutex covering the whole store.
// Get returns a copy of the stored value; Put stores a copy of the
// value it's given. Neither caller nor store can mutate the other's
// memory after the call returns.
//
// # Related packages
//
//   - internal/shard: routes entity traffic to the workers that use this package
//   - cmd/shardnode: wires EntityStore into the demo entity worker
package storage

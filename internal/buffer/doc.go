// Package buffer implements the single-producer/single-consumer message
// buffer used by a Shard to hold in-flight entity traffic across
// passivation and restart windows.
//
// # Overview
//
// A MessageBuffer is a FIFO queue of (message, sender) pairs owned
// exclusively by one Shard goroutine: the Shard both appends to it (on
// the producer side, when routing traffic for an entity that is
// currently unroutable) and drains it (on the consumer side, when the
// buffering window closes). Because ownership never crosses a goroutine
// boundary, no internal locking is used — see shard.Shard's concurrency
// model for why that invariant holds.
//
// A MessageBufferMap layers identity on top: the presence of an entity
// id as a key, even with an empty buffer, is itself meaningful — it is
// the flag the Shard uses to decide whether traffic for that id must be
// buffered rather than delivered directly.
package buffer

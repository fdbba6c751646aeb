// Package shard implements the per-partition supervisor of Torua-style
// cluster sharding: a concurrent state machine that multiplexes a
// logical partition's traffic onto an on-demand set of long-lived
// entity workers, buffers traffic across passivation/restart windows,
// and cooperates with an external coordinator during hand-off.
//
// # Overview
//
// A Shard owns exactly one mailbox (its Inbox channel) and processes
// messages from it one at a time on a single goroutine — the "mailbox
// loop" started by Run. No field of Shard is touched from any other
// goroutine; workers and the hand-off stopper report back to the Shard
// by sending Envelope values into that same Inbox, so the entire state
// machine — worker registries, the message-buffer map, the hand-off
// flag — is free of internal locking by construction.
//
// # Composition over inheritance
//
// A design that specializes a plain Shard into a persistent one by
// subclassing and overriding a handful of methods doesn't translate
// directly into Go. Instead the Shard owns a PersistenceStrategy: a
// small capability interface with one method per override point
// (Init, DeliverToMissingChild, EntityTerminated, EntitySpawned,
// Close). noopPersistenceStrategy realizes plain Shard behavior;
// journaledPersistenceStrategy (in persistent.go) realizes the
// remembered-entities behavior. The Shard's core dispatch loop and
// routing algorithm are shared verbatim between the two.
//
// # Child supervision
//
// The environment's supervise+watch primitive is modeled as a spawn
// function (EntityProps) that returns a *Worker: a handle wrapping an
// inbox channel plus a reference back to this Shard's own Inbox, which
// the worker goroutine uses to report its own termination as an
// ordinary Envelope{Message: Terminated{Ref: w}}. This keeps the Shard
// selecting over a single channel (its own mailbox) rather than a
// dynamically-sized set of per-child channels, which Go's select
// cannot express directly; see DESIGN.md for the tradeoff.
package shard

// Package recovery implements the pluggable entity recovery pacing
// policies used by a persistent Shard to re-spawn remembered entities
// after recovery completes, without thundering-herding the node.
//
// # Overview
//
// Given the full set of remembered entity ids at recovery time, a
// Strategy produces a Plan: an ordered list of ScheduledBatch values,
// each naming a group of ids and the delay (relative to recovery
// completion) after which that group should be redelivered to the
// Shard as a RestartEntities command. Two strategies are provided:
//
//   - AllAtOnce: one batch, delay zero (or no batch at all for an empty
//     id set).
//   - ConstantRate: fixed-size groups, each group k (0-indexed)
//     scheduled at (k+1)*frequency.
//
// A Strategy only plans; it does not own a clock. Scheduler turns a
// Plan into actual timers and invokes a callback per batch, using a
// timer+context+WaitGroup shutdown idiom so recovery timers cancel
// cleanly alongside Shard shutdown.
package recovery

package shard

import "github.com/dreamware/shardkeeper/internal/buffer"

// Sender is an opaque handle identifying the originator of a message,
// preserved across routing and buffering so a reply can find its way
// back. The Shard never interprets it.
type Sender = buffer.Sender

// Envelope is the unit the Shard's mailbox loop dequeues: a message
// together with the sender it should be attributed to when forwarded.
type Envelope struct {
	Message any
	Sender  Sender
}

// Terminated is delivered by a worker (entity or hand-off stopper) to
// report its own termination. ref identifies which worker stopped.
type Terminated struct {
	Ref *Worker
}

// HandOff requests that the Shard identified by ShardID begin handing
// off ownership of its entities to another cluster member. A HandOff
// for any other shard id is logged and ignored.
type HandOff struct {
	ShardID string
}

// RestartEntity ensures a single entity has a live worker, spawning one
// if necessary. Idempotent: restarting an already-live entity is a
// no-op.
type RestartEntity struct {
	ID string
}

// RestartEntities is the batch form of RestartEntity, used by the
// recovery-strategy scheduler to reintroduce remembered entities
// without a thundering herd.
type RestartEntities struct {
	IDs []string
}

// Passivate is sent by a worker to request cooperative shutdown;
// StopMessage is forwarded to the worker to trigger that shutdown.
// Traffic for the worker's entity id is buffered from this point until
// the worker's buffer is later drained.
type Passivate struct {
	StopMessage any
}

// GetCurrentShardState requests the set of entity ids that currently
// have a live worker. The Shard replies with CurrentShardState.
type GetCurrentShardState struct{}

// CurrentShardState is the reply to GetCurrentShardState.
type CurrentShardState struct {
	ShardID string
	IDs     []string
}

// GetShardStats requests the count of remembered entities. The Shard
// replies with ShardStats.
type GetShardStats struct{}

// ShardStats is the reply to GetShardStats.
type ShardStats struct {
	ShardID     string
	EntityCount int
}

// ShardInitialized is sent to the Shard's parent once after
// construction (plain Shard) or after recovery completes (persistent
// Shard).
type ShardInitialized struct {
	ShardID string
}

// ShardStopped is sent to a HandOff request's initiator when the Shard
// stops: immediately if it had no live entities, otherwise once the
// hand-off stopper has terminated.
type ShardStopped struct {
	ShardID string
}

// EntityStarted is the persisted event recording that an entity's
// worker came into existence.
type EntityStarted struct {
	ID string
}

// EntityStopped is the persisted event recording that an entity's
// worker has fully stopped and the entity is no longer remembered.
type EntityStopped struct {
	ID string
}

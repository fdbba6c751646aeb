package shard

import (
	"fmt"
	"sync"
	"time"

	"github.com/dreamware/shardkeeper/internal/journal"
	"github.com/dreamware/shardkeeper/internal/recovery"
)

// PersistentOptions configures the remember-entities variant of a
// Shard. Journal and Snapshots are required; the rest have sane
// defaults when zero-valued.
type PersistentOptions struct {
	Journal          journal.Journal
	Snapshots        journal.SnapshotStore
	SnapshotAfter    int
	RestartBackoff   time.Duration
	RecoveryStrategy recovery.Strategy
}

func (o PersistentOptions) withDefaults() PersistentOptions {
	if o.SnapshotAfter <= 0 {
		o.SnapshotAfter = 100
	}
	if o.RestartBackoff <= 0 {
		o.RestartBackoff = time.Second
	}
	if o.RecoveryStrategy == nil {
		o.RecoveryStrategy = recovery.NewAllAtOnce()
	}
	return o
}

// persistenceIDFor is the format mandated for a Shard's log identity.
func persistenceIDFor(typeName, shardID string) string {
	return fmt.Sprintf("/sharding/%sShard/%s", typeName, shardID)
}

// NewPersistent constructs a Shard in remember-entities mode: entity
// lifecycle transitions are journaled before they take effect, the
// live-id set is periodically snapshotted, and on startup the journal
// is replayed and remembered entities are restarted according to
// opts.RecoveryStrategy.
func NewPersistent(cfg Config, parent Sender, opts PersistentOptions) *Shard {
	opts = opts.withDefaults()
	strategy := &journaledPersistenceStrategy{
		persistenceID:    persistenceIDFor(cfg.TypeName, cfg.ShardID),
		journal:          opts.Journal,
		snapshots:        opts.Snapshots,
		snapshotAfter:    opts.SnapshotAfter,
		restartBackoff:   opts.RestartBackoff,
		recoveryStrategy: opts.RecoveryStrategy,
		backoffTimers:    make(map[string]*time.Timer),
	}
	return newShard(cfg, parent, strategy)
}

// journaledPersistenceStrategy implements PersistenceStrategy for the
// remember-entities variant: lifecycle transitions are durably recorded
// before they take effect, and recovery replays the journal (seeded
// from the latest snapshot) before restarting remembered entities at a
// configurable pace.
type journaledPersistenceStrategy struct {
	persistenceID    string
	journal          journal.Journal
	snapshots        journal.SnapshotStore
	snapshotAfter    int
	restartBackoff   time.Duration
	recoveryStrategy recovery.Strategy

	seq int64

	scheduler *recovery.Scheduler

	mu            sync.Mutex
	backoffTimers map[string]*time.Timer
}

func (j *journaledPersistenceStrategy) Init(s *Shard) {
	j.recover(s)
	j.scheduleRecoveredEntities(s)
	s.announceInitialized()
}

// recover reconstructs state.entities from the latest snapshot (if
// any) plus every journal event committed since.
func (j *journaledPersistenceStrategy) recover(s *Shard) {
	if baseline, seq, ok, err := j.snapshots.Load(s.ctx, j.persistenceID); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot load failed; recovering from journal alone")
	} else if ok {
		for _, id := range baseline.Entities {
			s.commitEntityStarted(id)
		}
		j.seq = seq
	}

	events, lastSeq, err := j.journal.Replay(s.ctx, j.persistenceID, j.seq)
	if err != nil {
		s.logger.Warn().Err(err).Msg("journal replay failed; recovering from snapshot alone")
		return
	}
	for _, event := range events {
		switch event.Kind {
		case journal.EntityStarted:
			s.commitEntityStarted(event.ID)
		case journal.EntityStopped:
			s.commitEntityStopped(event.ID)
		}
	}
	j.seq = lastSeq
}

// scheduleRecoveredEntities implements restart-remembered-entities:
// pace the re-spawn of every entity recovery left in state.entities.
func (j *journaledPersistenceStrategy) scheduleRecoveredEntities(s *Shard) {
	ids := s.state.SortedIDs()
	plan := j.recoveryStrategy.Plan(ids)
	j.scheduler = recovery.NewScheduler(s.ctx)
	j.scheduler.Run(plan, func(batch []string) {
		s.Deliver(RestartEntities{IDs: batch}, s)
	})
}

// persist runs the journal-then-apply sequence common to every write:
// snapshot if due, append the event, and only apply it to in-memory
// state once the journal has acknowledged the commit.
func (j *journaledPersistenceStrategy) persist(s *Shard, event journal.Event, apply func()) {
	j.saveSnapshotWhenNeeded(s)
	j.seq++
	event.Seq = j.seq

	if err := j.journal.Append(s.ctx, j.persistenceID, j.seq, event); err != nil {
		s.logger.Warn().Err(err).Str("entity_id", event.ID).Msg("journal append failed; change not applied")
		return
	}
	apply()
}

func (j *journaledPersistenceStrategy) saveSnapshotWhenNeeded(s *Shard) {
	if j.seq == 0 || j.seq%int64(j.snapshotAfter) != 0 {
		return
	}
	state := journal.State{Entities: s.state.SortedIDs()}
	if err := j.snapshots.Save(s.ctx, j.persistenceID, state, j.seq); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot save failed; will retry at next boundary")
		return
	}
	s.logger.Debug().Int64("seq", j.seq).Msg("snapshot saved")
}

func (j *journaledPersistenceStrategy) DeliverToMissingChild(s *Shard, id string, message, _ any, sender Sender) {
	s.buffers.Append(id, message, sender)
	s.cfg.Metrics.SetBufferedMessages(s.cfg.TypeName, s.cfg.ShardID, s.buffers.TotalSize())
	j.persist(s, journal.Event{Kind: journal.EntityStarted, ID: id}, func() {
		s.commitEntityStarted(id)
		s.sendMsgBuffer(id)
	})
}

func (j *journaledPersistenceStrategy) EntityTerminated(s *Shard, id string, w *Worker, wasPassivating bool) {
	if !s.buffers.GetOrEmpty(id).IsEmpty() {
		s.sendMsgBuffer(id)
		return
	}
	if !wasPassivating {
		j.scheduleRestart(s, id)
		return
	}
	j.persist(s, journal.Event{Kind: journal.EntityStopped, ID: id}, func() {
		s.commitEntityStopped(id)
	})
}

// scheduleRestart implements the unexpected-termination back-off path:
// no EntityStopped is persisted, so the entity remains remembered; a
// one-shot RestartEntity fires after restartBackoff.
func (j *journaledPersistenceStrategy) scheduleRestart(s *Shard, id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	timer := time.AfterFunc(j.restartBackoff, func() {
		s.Deliver(RestartEntity{ID: id}, s)
	})
	if old, ok := j.backoffTimers[id]; ok {
		old.Stop()
	}
	j.backoffTimers[id] = timer
}

func (j *journaledPersistenceStrategy) EntitySpawned(_ *Shard, _ string) {
	// No-op: state.entities is only ever updated through persist/apply
	// (on commit) or journal replay, never synchronously on spawn.
}

func (j *journaledPersistenceStrategy) Close() {
	if j.scheduler != nil {
		j.scheduler.Stop()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, timer := range j.backoffTimers {
		timer.Stop()
	}
}

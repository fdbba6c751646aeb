// Package shard implements the fundamental per-partition supervisor
// described in doc.go.
package shard

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dreamware/shardkeeper/internal/buffer"
	"github.com/dreamware/shardkeeper/internal/metrics"
)

// ExtractEntityID classifies an inbound application message. ok is
// false for messages the extractor does not recognize as application
// traffic at all; when ok is true, id is the routing key (possibly
// empty, which is itself an error case the Shard handles) and payload
// is what gets forwarded to the entity worker.
type ExtractEntityID func(message any) (id string, payload any, ok bool)

// EntityProps spawns a worker for entity id. shardInbox is the owning
// Shard's mailbox, which the spawned worker must eventually deliver a
// Terminated envelope to (typically via Worker.NotifyTerminated) when
// it stops.
type EntityProps func(id string, shardInbox chan<- Envelope) *Worker

// HandOffStopperProps spawns the per-hand-off stopper worker,
// parameterized with the shard being handed off, the reply target for
// ShardStopped (unused by the stopper itself — the Shard sends that
// reply, either at once or when the stopper terminates), the names of
// entities known at hand-off time, and the stop message to send each of
// them.
type HandOffStopperProps func(shardID string, replyTo Sender, entityNames []string, stopMessage any, shardInbox chan<- Envelope) *Worker

// DeadLetterSink receives messages the Shard could not route: empty
// routing keys and buffer overflow. Messages the extractor does not
// recognize are dropped without reaching the sink. reason is a short
// machine-readable tag for logging/metrics.
type DeadLetterSink func(message any, reason string)

// State is the set of entity ids the Shard currently remembers. In the
// plain Shard it tracks only live workers; in the persistent Shard it
// is the durable source of truth and may briefly be a superset of live
// workers between a restart attempt and its completion.
type State struct {
	Entities map[string]struct{}
}

func newState() State {
	return State{Entities: make(map[string]struct{})}
}

// SortedIDs returns the entity ids in state, sorted, for deterministic
// output to callers (query replies, snapshots).
func (s State) SortedIDs() []string {
	ids := make([]string, 0, len(s.Entities))
	for id := range s.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Config holds the tunables the core Shard itself consults.
// Persistence-specific tunables (snapshotAfter, entityRestartBackoff,
// recovery strategy) live on the persistence strategy instead, since a
// plain Shard has no use for them.
type Config struct {
	TypeName            string
	ShardID             string
	BufferSize          int
	HandOffStopMessage  any
	ExtractEntityID     ExtractEntityID
	EntityProps         EntityProps
	HandOffStopperProps HandOffStopperProps
	DeadLetters         DeadLetterSink
	Logger              zerolog.Logger

	// Metrics is optional; a nil Collector turns every recording call
	// into a no-op, so a Shard runs the same with or without it.
	Metrics *metrics.Collector
}

// Shard is the per-partition supervisor. See doc.go for the concurrency
// model: every field below is touched only from the goroutine running
// Run.
type Shard struct {
	cfg      Config
	strategy PersistenceStrategy
	logger   zerolog.Logger

	inbox chan Envelope
	ctx   context.Context

	idByRef     map[*Worker]string
	refByID     map[string]*Worker
	passivating map[*Worker]struct{}
	buffers     *buffer.Map
	state       State

	handOffStopper *Worker
	handOffReplyTo Sender
	handingOff     bool
	handOffStarted time.Time
	terminal       bool

	parent Sender

	stopped chan struct{}
}

// New constructs a plain (non-persistent) Shard: state.entities tracks
// only currently-live workers, and EntityStarted/EntityStopped are
// never durably recorded. parent receives ShardInitialized once Run
// starts.
func New(cfg Config, parent Sender) *Shard {
	return newShard(cfg, parent, noopPersistenceStrategy{})
}

func newShard(cfg Config, parent Sender, strategy PersistenceStrategy) *Shard {
	instanceID := uuid.NewString()
	logger := cfg.Logger.With().
		Str("type_name", cfg.TypeName).
		Str("shard_id", cfg.ShardID).
		Str("instance_id", instanceID).
		Logger()

	s := &Shard{
		cfg:         cfg,
		strategy:    strategy,
		logger:      logger,
		inbox:       make(chan Envelope, 256),
		idByRef:     make(map[*Worker]string),
		refByID:     make(map[string]*Worker),
		passivating: make(map[*Worker]struct{}),
		buffers:     buffer.NewMap(),
		state:       newState(),
		parent:      parent,
		stopped:     make(chan struct{}),
	}
	return s
}

// Inbox exposes the Shard's mailbox so external collaborators (a
// ShardRegion-style router, test probes) can deliver messages to it.
// This is the Shard's only concurrency-safe entry point.
func (s *Shard) Inbox() chan<- Envelope {
	return s.inbox
}

// Stopped returns a channel closed once the Shard's mailbox loop has
// exited, for callers that need to wait for full shutdown (e.g. after
// a hand-off).
func (s *Shard) Stopped() <-chan struct{} {
	return s.stopped
}

// ShardID returns the shard's stable identity.
func (s *Shard) ShardID() string { return s.cfg.ShardID }

// Run starts the Shard's mailbox loop and blocks until the Shard
// terminates — either because a hand-off completed, or because ctx was
// canceled. Run must be called exactly once.
func (s *Shard) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.stopped)
	defer s.strategy.Close()

	s.strategy.Init(s)

	for {
		select {
		case env := <-s.inbox:
			s.handle(env)
			if s.terminal {
				return
			}
		case <-ctx.Done():
			s.logger.Debug().Msg("shard stopping: context canceled")
			return
		}
	}
}

func (s *Shard) announceInitialized() {
	if s.parent != nil {
		reply(s.parent, ShardInitialized{ShardID: s.cfg.ShardID}, s)
	}
}

func (s *Shard) handle(env Envelope) {
	switch msg := env.Message.(type) {
	case Terminated:
		s.handleTerminated(msg)
		return
	case HandOff:
		s.handleHandOff(msg, env.Sender)
		return
	}

	if s.handingOff {
		s.logger.Debug().Msg("discarding message received while handing off")
		return
	}

	switch msg := env.Message.(type) {
	case RestartEntity:
		s.getOrSpawnEntity(msg.ID)
	case RestartEntities:
		for _, id := range msg.IDs {
			s.getOrSpawnEntity(id)
		}
	case Passivate:
		if w, ok := env.Sender.(*Worker); ok {
			s.passivate(w, msg.StopMessage)
		}
	case GetCurrentShardState:
		reply(env.Sender, CurrentShardState{ShardID: s.cfg.ShardID, IDs: s.liveIDs()}, s)
	case GetShardStats:
		reply(env.Sender, ShardStats{ShardID: s.cfg.ShardID, EntityCount: len(s.state.Entities)}, s)
	default:
		s.routeApplicationMessage(env.Message, env.Sender)
	}
}

func (s *Shard) liveIDs() []string {
	ids := make([]string, 0, len(s.refByID))
	for id := range s.refByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// routeApplicationMessage routes an inbound application message to its
// entity, buffering it instead if the entity is currently in a
// buffering window.
func (s *Shard) routeApplicationMessage(message any, sender Sender) {
	if s.cfg.ExtractEntityID == nil {
		return
	}
	id, payload, ok := s.cfg.ExtractEntityID(message)
	if !ok {
		return
	}
	if id == "" {
		s.logger.Warn().Msg("dropping message with empty entity id")
		s.deadLetter(message, "empty_entity_id")
		return
	}
	if !s.buffers.Contains(id) {
		s.deliverTo(id, message, payload, sender)
		return
	}
	if s.buffers.TotalSize() >= s.cfg.BufferSize {
		s.logger.Debug().Str("entity_id", id).Msg("buffer full, dropping message")
		s.deadLetter(message, "buffer_overflow")
		return
	}
	s.buffers.Append(id, message, sender)
	s.cfg.Metrics.SetBufferedMessages(s.cfg.TypeName, s.cfg.ShardID, s.buffers.TotalSize())
}

func (s *Shard) deadLetter(message any, reason string) {
	s.cfg.Metrics.IncDeadLetter(s.cfg.TypeName, s.cfg.ShardID, reason)
	if s.cfg.DeadLetters != nil {
		s.cfg.DeadLetters(message, reason)
	}
}

// deliverTo forwards payload to an existing worker, or hands off to the
// persistence strategy when the worker doesn't exist yet.
func (s *Shard) deliverTo(id string, message, payload any, sender Sender) {
	if w, ok := s.refByID[id]; ok {
		w.Send(payload, sender)
		return
	}
	s.strategy.DeliverToMissingChild(s, id, message, payload, sender)
}

// getOrSpawnEntity returns the live worker for id, spawning one if none
// exists yet.
func (s *Shard) getOrSpawnEntity(id string) *Worker {
	if w, ok := s.refByID[id]; ok {
		return w
	}
	w := s.cfg.EntityProps(id, s.inbox)
	s.idByRef[w] = id
	s.refByID[id] = w
	s.strategy.EntitySpawned(s, id)
	s.cfg.Metrics.SetLiveEntities(s.cfg.TypeName, s.cfg.ShardID, len(s.refByID))
	return w
}

// passivate opens a buffering window for w's entity and forwards it the
// requested stop message.
func (s *Shard) passivate(w *Worker, stopMessage any) {
	id, ok := s.idByRef[w]
	if !ok {
		return // unknown passivator: silently ignored
	}
	if s.buffers.Contains(id) {
		return // already buffering: idempotent
	}
	s.buffers.Add(id)
	s.passivating[w] = struct{}{}
	s.cfg.Metrics.IncPassivation(s.cfg.TypeName, s.cfg.ShardID)
	w.Send(stopMessage, s)
}

func (s *Shard) handleTerminated(msg Terminated) {
	if msg.Ref == s.handOffStopper {
		s.logger.Info().Msg("hand-off stopper terminated; stopping shard")
		s.terminal = true
		reply(s.handOffReplyTo, ShardStopped{ShardID: s.cfg.ShardID}, s)
		s.cfg.Metrics.ObserveHandOffDuration(s.cfg.TypeName, s.cfg.ShardID, time.Since(s.handOffStarted))
		return
	}
	if s.handingOff {
		// Only the stopper's own termination is acted on while handing
		// off; entity terminations are left for the stopper to track.
		return
	}
	id, ok := s.idByRef[msg.Ref]
	if !ok {
		return
	}
	s.entityTerminated(id, msg.Ref)
}

// entityTerminated removes w from the live-worker registries and
// delegates the plain-vs-persistent decision to the strategy.
func (s *Shard) entityTerminated(id string, w *Worker) {
	delete(s.idByRef, w)
	if cur, ok := s.refByID[id]; ok && cur == w {
		delete(s.refByID, id)
	}
	_, wasPassivating := s.passivating[w]
	delete(s.passivating, w)

	s.strategy.EntityTerminated(s, id, w, wasPassivating)
	s.cfg.Metrics.SetLiveEntities(s.cfg.TypeName, s.cfg.ShardID, len(s.refByID))
}

// sendMsgBuffer closes id's buffering window, respawns its worker if
// needed, and replays the buffered traffic through the ordinary routing
// path in order.
func (s *Shard) sendMsgBuffer(id string) {
	buf := s.buffers.Drain(id)
	if buf.IsEmpty() {
		return
	}
	s.getOrSpawnEntity(id)
	buf.ForEach(func(e buffer.Entry) {
		s.routeApplicationMessage(e.Message, e.Sender)
	})
	s.cfg.Metrics.SetBufferedMessages(s.cfg.TypeName, s.cfg.ShardID, s.buffers.TotalSize())
}

// commitEntityStarted records id as remembered. Called synchronously by
// the plain strategy on spawn, and by the persistent strategy when
// applying a committed or replayed EntityStarted event.
func (s *Shard) commitEntityStarted(id string) {
	s.state.Entities[id] = struct{}{}
}

// commitEntityStopped forgets id. Called synchronously by the plain
// strategy when a worker with an empty buffer stops, and by the
// persistent strategy when applying a committed or replayed
// EntityStopped event.
func (s *Shard) commitEntityStopped(id string) {
	delete(s.state.Entities, id)
	s.buffers.Remove(id)
}

// handleHandOff implements the hand-off protocol: a foreign shard id
// is ignored, a shard with no live entities stops immediately, and
// otherwise a stopper worker drives graceful shutdown of every known
// entity before the shard itself stops.
func (s *Shard) handleHandOff(msg HandOff, sender Sender) {
	if msg.ShardID != s.cfg.ShardID {
		s.logger.Warn().Str("requested_shard_id", msg.ShardID).Msg("hand-off requested for foreign shard id; ignoring")
		return
	}
	if s.handingOff {
		s.logger.Warn().Msg("hand-off already in progress; ignoring duplicate request")
		return
	}

	s.handOffStarted = time.Now()

	if len(s.refByID) == 0 {
		reply(sender, ShardStopped{ShardID: s.cfg.ShardID}, s)
		s.terminal = true
		s.cfg.Metrics.ObserveHandOffDuration(s.cfg.TypeName, s.cfg.ShardID, time.Since(s.handOffStarted))
		return
	}

	names := make([]string, 0, len(s.idByRef))
	for w := range s.idByRef {
		names = append(names, w.Name)
	}
	sort.Strings(names)

	s.handOffReplyTo = sender
	s.handOffStopper = s.cfg.HandOffStopperProps(s.cfg.ShardID, sender, names, s.cfg.HandOffStopMessage, s.inbox)
	s.handingOff = true
	s.logger.Info().Int("entity_count", len(names)).Msg("hand-off started")
}

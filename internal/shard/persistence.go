package shard

// PersistenceStrategy factors out the one behavioral difference between
// a plain Shard and a persistent ("remember entities") Shard: whether
// entity lifecycle transitions are durably recorded before they take
// effect. Everything else — routing, buffering, passivation, hand-off —
// is shared code in shard.go, which calls back into the active strategy
// at exactly the points where that distinction matters.
//
// A PersistenceStrategy is owned by exactly one Shard and is never
// called concurrently; it may freely call back into unexported Shard
// methods (commitEntityStarted, getOrSpawnEntity, sendMsgBuffer, …)
// since both live in this package.
//
// Implementations: noopPersistenceStrategy below realizes plain Shard
// behavior; journaledPersistenceStrategy (persistent.go) realizes the
// remembered-entities behavior.
type PersistenceStrategy interface {
	// Init runs once, before the Shard's mailbox loop starts receiving.
	// The plain strategy uses it to announce readiness immediately; the
	// persistent strategy uses it to replay the journal first.
	Init(s *Shard)

	// DeliverToMissingChild handles routeApplicationMessage's miss case:
	// no live worker exists for id yet. message is the original inbound
	// message (as received by the Shard); payload is what
	// ExtractEntityID produced from it and is what a live worker would
	// be sent.
	DeliverToMissingChild(s *Shard, id string, message, payload any, sender Sender)

	// EntityTerminated handles a worker's termination. wasPassivating
	// reports whether the worker was mid-passivation (i.e. had already
	// been sent its stop message by the Shard) as opposed to having
	// stopped unexpectedly.
	EntityTerminated(s *Shard, id string, w *Worker, wasPassivating bool)

	// EntitySpawned runs whenever getOrSpawnEntity creates a new worker,
	// whether from ordinary routing, RestartEntity(ies), or a
	// persistence-driven respawn.
	EntitySpawned(s *Shard, id string)

	// Close runs once as the Shard's mailbox loop exits, for releasing
	// strategy-owned resources (journal handles, timers).
	Close()
}

// noopPersistenceStrategy implements the plain, non-remembering Shard:
// state.Entities tracks exactly the currently-live workers and nothing
// is ever durably recorded.
type noopPersistenceStrategy struct{}

func (noopPersistenceStrategy) Init(s *Shard) {
	s.announceInitialized()
}

func (noopPersistenceStrategy) DeliverToMissingChild(s *Shard, id string, message, payload any, sender Sender) {
	w := s.getOrSpawnEntity(id)
	w.Send(payload, sender)
}

func (noopPersistenceStrategy) EntityTerminated(s *Shard, id string, w *Worker, wasPassivating bool) {
	if !s.buffers.GetOrEmpty(id).IsEmpty() {
		s.sendMsgBuffer(id)
		return
	}
	s.commitEntityStopped(id)
}

func (noopPersistenceStrategy) EntitySpawned(s *Shard, id string) {
	s.commitEntityStarted(id)
}

func (noopPersistenceStrategy) Close() {}

package journal

import "context"

// Journal is the append-only event log behind a persistent Shard.
// Implementations must preserve append order per persistenceID:
// Replay must return events in the order Append committed them.
type Journal interface {
	// Append durably records event as the next entry for persistenceID
	// at sequence seq. Append must not return nil until the write is
	// committed; the caller treats a non-nil error as "not committed"
	// and does not apply the event to in-memory state.
	Append(ctx context.Context, persistenceID string, seq int64, event Event) error

	// Replay returns every event committed for persistenceID with a
	// sequence number greater than fromSeq, in commit order, along with
	// the highest sequence number observed (fromSeq if none).
	Replay(ctx context.Context, persistenceID string, fromSeq int64) (events []Event, lastSeq int64, err error)
}

// SnapshotStore holds the most recent periodic snapshot of a
// persistence id's remembered entity set, so Journal.Replay only has
// to cover events since that point.
type SnapshotStore interface {
	// Save durably records state as persistenceID's snapshot as of seq.
	// A later Save for the same persistenceID replaces the prior one.
	Save(ctx context.Context, persistenceID string, state State, seq int64) error

	// Load returns the most recently saved snapshot for persistenceID,
	// if any. ok is false when no snapshot has ever been saved.
	Load(ctx context.Context, persistenceID string) (state State, seq int64, ok bool, err error)
}

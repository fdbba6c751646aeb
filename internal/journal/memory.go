package journal

import (
	"context"
	"sync"
)

// MemoryJournal is an in-process Journal backed by a plain slice per
// persistence id. It is used by tests that want a persistent Shard
// without a running NATS server; the plain Shard uses no journal at
// all.
type MemoryJournal struct {
	mu     sync.Mutex
	events map[string][]Event
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{events: make(map[string][]Event)}
}

func (m *MemoryJournal) Append(_ context.Context, persistenceID string, seq int64, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.Seq = seq
	m.events[persistenceID] = append(m.events[persistenceID], event)
	return nil
}

func (m *MemoryJournal) Replay(_ context.Context, persistenceID string, fromSeq int64) ([]Event, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.events[persistenceID]
	lastSeq := fromSeq
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.Seq > fromSeq {
			out = append(out, e)
		}
		if e.Seq > lastSeq {
			lastSeq = e.Seq
		}
	}
	return out, lastSeq, nil
}

// MemorySnapshotStore is an in-process SnapshotStore, one entry per
// persistence id.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]memorySnapshot
}

type memorySnapshot struct {
	state State
	seq   int64
}

// NewMemorySnapshotStore returns an empty MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[string]memorySnapshot)}
}

func (m *MemorySnapshotStore) Save(_ context.Context, persistenceID string, state State, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[persistenceID] = memorySnapshot{state: state, seq: seq}
	return nil
}

func (m *MemorySnapshotStore) Load(_ context.Context, persistenceID string) (State, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[persistenceID]
	if !ok {
		return State{}, 0, false, nil
	}
	return snap.state, snap.seq, true, nil
}

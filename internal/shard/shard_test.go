package shard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingWorker is a minimal stand-in for an application-level entity
// worker: its own goroutine just appends every envelope it receives to
// a slice, guarded by a mutex, until told to stop.
type recordingWorker struct {
	mu   sync.Mutex
	recv []Envelope
}

func (r *recordingWorker) received() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.recv))
	copy(out, r.recv)
	return out
}

type stopMsg struct{}

func spawnRecordingWorker(id string, shardInbox chan<- Envelope) (*Worker, *recordingWorker) {
	w := NewWorker(id, 16, shardInbox)
	rec := &recordingWorker{}
	go func() {
		defer w.NotifyTerminated()
		for env := range w.Inbox() {
			if _, ok := env.Message.(stopMsg); ok {
				return
			}
			rec.mu.Lock()
			rec.recv = append(rec.recv, env)
			rec.mu.Unlock()
		}
	}()
	return w, rec
}

type probe struct {
	mu   sync.Mutex
	recv []any
	ch   chan any
}

func newProbe() *probe {
	return &probe{ch: make(chan any, 16)}
}

func (p *probe) Deliver(message any, from Sender) {
	p.mu.Lock()
	p.recv = append(p.recv, message)
	p.mu.Unlock()
	p.ch <- message
}

func (p *probe) expectWithin(t *testing.T, d time.Duration) any {
	t.Helper()
	select {
	case msg := <-p.ch:
		return msg
	case <-time.After(d):
		t.Fatal("timed out waiting for probe message")
		return nil
	}
}

type testMessage struct {
	ID      string
	Payload string
}

func extractTestID(message any) (string, any, bool) {
	switch m := message.(type) {
	case testMessage:
		return m.ID, m.Payload, true
	case string:
		return m, m, true
	default:
		return "", nil, false
	}
}

func newTestShard(t *testing.T, bufferSize int, spawn EntityProps) (*Shard, *probe) {
	return newTestShardWithDeadLetters(t, bufferSize, spawn, nil)
}

func newTestShardWithDeadLetters(t *testing.T, bufferSize int, spawn EntityProps, deadLetters DeadLetterSink) (*Shard, *probe) {
	t.Helper()
	parent := newProbe()
	cfg := Config{
		TypeName:           "test-entity",
		ShardID:            "shard-1",
		BufferSize:         bufferSize,
		HandOffStopMessage: stopMsg{},
		ExtractEntityID:    extractTestID,
		EntityProps:        spawn,
		DeadLetters:        deadLetters,
		HandOffStopperProps: func(shardID string, replyTo Sender, names []string, stopMessage any, shardInbox chan<- Envelope) *Worker {
			w := NewWorker("handoff-stopper", 4, shardInbox)
			go func() {
				defer w.NotifyTerminated()
				<-w.Inbox()
			}()
			return w
		},
		Logger: zerolog.Nop(),
	}
	s := New(cfg, parent)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	return s, parent
}

func TestShard_LazySpawnOnFirstMessage(t *testing.T) {
	var spawned []string
	var mu sync.Mutex
	workers := map[string]*recordingWorker{}

	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		mu.Lock()
		spawned = append(spawned, id)
		mu.Unlock()
		w, rec := spawnRecordingWorker(id, shardInbox)
		mu.Lock()
		workers[id] = rec
		mu.Unlock()
		return w
	}

	s, parent := newTestShard(t, 10, spawn)
	_ = parent.expectWithin(t, time.Second) // ShardInitialized

	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "hello"}}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(spawned) == 1
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(workers["a"].received()) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, "hello", workers["a"].received()[0].Message)
}

func TestShard_RestartEntityIsIdempotent(t *testing.T) {
	var spawnCount int
	var mu sync.Mutex
	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		mu.Lock()
		spawnCount++
		mu.Unlock()
		w, _ := spawnRecordingWorker(id, shardInbox)
		return w
	}

	s, parent := newTestShard(t, 10, spawn)
	_ = parent.expectWithin(t, time.Second)

	s.Inbox() <- Envelope{Message: RestartEntity{ID: "a"}}
	s.Inbox() <- Envelope{Message: RestartEntity{ID: "a"}}

	caller := newProbe()
	s.Inbox() <- Envelope{Message: GetShardStats{}, Sender: caller}
	stats := caller.expectWithin(t, time.Second).(ShardStats)
	assert.Equal(t, 1, stats.EntityCount)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, spawnCount)
}

func TestShard_PassivationBuffersThenFlushes(t *testing.T) {
	var mu sync.Mutex
	var generation int
	workers := map[int]*recordingWorker{}
	refs := map[int]*Worker{}

	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		mu.Lock()
		generation++
		gen := generation
		mu.Unlock()
		w := NewWorker(id, 16, shardInbox)
		rec := &recordingWorker{}
		mu.Lock()
		workers[gen] = rec
		refs[gen] = w
		mu.Unlock()
		go func() {
			defer w.NotifyTerminated()
			for env := range w.Inbox() {
				if _, ok := env.Message.(stopMsg); ok {
					return
				}
				rec.mu.Lock()
				rec.recv = append(rec.recv, env)
				rec.mu.Unlock()
			}
		}()
		return w
	}

	s, parent := newTestShard(t, 10, spawn)
	_ = parent.expectWithin(t, time.Second)

	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "first"}}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(workers[1].received()) == 1
	}, time.Second, time.Millisecond)

	// Passivate "a": the worker asks the Shard to passivate it, which
	// should buffer subsequent traffic rather than delivering it to the
	// now-stopping worker.
	mu.Lock()
	w1 := refs[1]
	mu.Unlock()
	s.Inbox() <- Envelope{Message: Passivate{StopMessage: stopMsg{}}, Sender: w1}

	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "buffered-1"}}
	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "buffered-2"}}

	// Once the worker actually terminates, the buffered traffic should
	// respawn it (generation 2) and flush in order.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		_, ok := workers[2]
		return ok
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(workers[2].received()) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "buffered-1", workers[2].received()[0].Message)
	assert.Equal(t, "buffered-2", workers[2].received()[1].Message)
}

func TestShard_BufferOverflowDropsMessage(t *testing.T) {
	blockCh := make(chan struct{})
	var mu sync.Mutex
	var w *Worker
	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		created := NewWorker(id, 1, shardInbox)
		mu.Lock()
		w = created
		mu.Unlock()
		go func() {
			defer created.NotifyTerminated()
			// Drains and ignores everything, including its own stop
			// message, until told to actually exit — simulating a slow
			// worker so the Shard's buffer has something to overflow.
			for {
				select {
				case <-created.Inbox():
				case <-blockCh:
					return
				}
			}
		}()
		return created
	}

	var dropReasons []string
	var dropMu sync.Mutex
	s, parent := newTestShardWithDeadLetters(t, 1, spawn, func(message any, reason string) {
		dropMu.Lock()
		dropReasons = append(dropReasons, reason)
		dropMu.Unlock()
	})
	_ = parent.expectWithin(t, time.Second)

	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "p0"}}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return w != nil
	}, time.Second, time.Millisecond)

	mu.Lock()
	passivating := w
	mu.Unlock()
	s.Inbox() <- Envelope{Message: Passivate{StopMessage: stopMsg{}}, Sender: passivating}

	// Fill the single buffer slot, then overflow it.
	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "buffered"}}
	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "overflow"}}

	caller := newProbe()
	s.Inbox() <- Envelope{Message: GetShardStats{}, Sender: caller}
	stats := caller.expectWithin(t, time.Second).(ShardStats)
	assert.Equal(t, 1, stats.EntityCount)

	require.Eventually(t, func() bool {
		dropMu.Lock()
		defer dropMu.Unlock()
		return len(dropReasons) == 1
	}, time.Second, time.Millisecond)
	dropMu.Lock()
	assert.Equal(t, []string{"buffer_overflow"}, dropReasons)
	dropMu.Unlock()

	close(blockCh)
}

func TestShard_HandOffWithNoEntitiesStopsImmediately(t *testing.T) {
	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		w, _ := spawnRecordingWorker(id, shardInbox)
		return w
	}
	s, parent := newTestShard(t, 10, spawn)
	_ = parent.expectWithin(t, time.Second)

	caller := newProbe()
	s.Inbox() <- Envelope{Message: HandOff{ShardID: "shard-1"}, Sender: caller}

	msg := caller.expectWithin(t, time.Second)
	assert.Equal(t, ShardStopped{ShardID: "shard-1"}, msg)

	select {
	case <-s.Stopped():
	case <-time.After(time.Second):
		t.Fatal("shard did not stop after empty hand-off")
	}
}

func TestShard_HandOffWithLiveEntitiesRepliesOnceStopperFinishes(t *testing.T) {
	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		w, _ := spawnRecordingWorker(id, shardInbox)
		return w
	}
	parent := newProbe()
	cfg := Config{
		TypeName:           "test-entity",
		ShardID:            "shard-1",
		BufferSize:         10,
		HandOffStopMessage: stopMsg{},
		ExtractEntityID:    extractTestID,
		EntityProps:        spawn,
		HandOffStopperProps: func(shardID string, replyTo Sender, names []string, stopMessage any, shardInbox chan<- Envelope) *Worker {
			// This stopper never actually contacts the entities it was
			// given; it exists only to exercise the Shard's own
			// stopper-terminated -> ShardStopped reply path.
			w := NewWorker("handoff-stopper", 4, shardInbox)
			go w.NotifyTerminated()
			return w
		},
		Logger: zerolog.Nop(),
	}
	s := New(cfg, parent)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)
	_ = parent.expectWithin(t, time.Second)

	s.Inbox() <- Envelope{Message: testMessage{ID: "a", Payload: "hello"}}
	caller := newProbe()
	require.Eventually(t, func() bool {
		s.Inbox() <- Envelope{Message: GetShardStats{}, Sender: caller}
		select {
		case msg := <-caller.ch:
			stats, ok := msg.(ShardStats)
			return ok && stats.EntityCount == 1
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, time.Second, 10*time.Millisecond)

	s.Inbox() <- Envelope{Message: HandOff{ShardID: "shard-1"}, Sender: caller}

	msg := caller.expectWithin(t, time.Second)
	assert.Equal(t, ShardStopped{ShardID: "shard-1"}, msg)

	select {
	case <-s.Stopped():
	case <-time.After(time.Second):
		t.Fatal("shard did not stop once the hand-off stopper finished")
	}
}

func TestShard_HandOffForForeignShardIDIsIgnored(t *testing.T) {
	spawn := func(id string, shardInbox chan<- Envelope) *Worker {
		w, _ := spawnRecordingWorker(id, shardInbox)
		return w
	}
	s, parent := newTestShard(t, 10, spawn)
	_ = parent.expectWithin(t, time.Second)

	caller := newProbe()
	s.Inbox() <- Envelope{Message: HandOff{ShardID: "some-other-shard"}, Sender: caller}

	select {
	case <-caller.ch:
		t.Fatal("shard replied to a hand-off request for a different shard id")
	case <-time.After(100 * time.Millisecond):
	}

	select {
	case <-s.Stopped():
		t.Fatal("shard stopped in response to a foreign hand-off request")
	default:
	}
}

package main

import (
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dreamware/shardkeeper/internal/shard"
)

// workerRegistry tracks every live entity worker by id, outside the
// Shard's own bookkeeping, so the hand-off stopper (which only
// receives entity names from the Shard, not worker handles) can find
// and address them directly.
type workerRegistry struct {
	mu      sync.Mutex
	workers map[string]*shard.Worker
}

func newWorkerRegistry() *workerRegistry {
	return &workerRegistry{workers: make(map[string]*shard.Worker)}
}

func (r *workerRegistry) put(id string, w *shard.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[id] = w
}

func (r *workerRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
}

func (r *workerRegistry) get(id string) (*shard.Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	return w, ok
}

// newHandOffStopperProps returns a HandOffStopperProps that sends
// stopEntity to every named worker found in reg, waits for each to
// report termination, and then reports its own termination to the
// Shard — driving the hand-off protocol to completion.
func newHandOffStopperProps(reg *workerRegistry, logger zerolog.Logger) shard.HandOffStopperProps {
	return func(shardID string, replyTo shard.Sender, entityNames []string, stopMessage any, shardInbox chan<- shard.Envelope) *shard.Worker {
		w := shard.NewWorker("handoff-stopper-"+shardID, 1, shardInbox)

		go func() {
			defer w.NotifyTerminated()

			var pending []*shard.Worker
			for _, name := range entityNames {
				// Worker names are percent-encoded ids; reg is keyed by
				// the raw id.
				id, err := url.PathUnescape(name)
				if err != nil {
					id = name
				}
				entity, ok := reg.get(id)
				if !ok {
					continue
				}
				entity.Send(stopMessage, w)
				pending = append(pending, entity)
			}

			for _, entity := range pending {
				select {
				case <-entity.Done():
				case <-time.After(10 * time.Second):
					logger.Warn().Str("entity_id", entity.Name).Msg("hand-off: entity did not stop within timeout")
				}
			}
		}()
		return w
	}
}

package main

import (
	"net/url"

	"github.com/rs/zerolog"

	"github.com/dreamware/shardkeeper/internal/shard"
	"github.com/dreamware/shardkeeper/internal/storage"
)

// PutCommand stores Value under Key within entity EntityID's own store.
type PutCommand struct {
	EntityID string
	Key      string
	Value    []byte
}

// GetCommand retrieves Key from entity EntityID's own store.
type GetCommand struct {
	EntityID string
	Key      string
}

// GetResult is the reply to a GetCommand.
type GetResult struct {
	Value []byte
	Err   error
}

// stopEntity is the message a Shard forwards to an entity worker to
// request cooperative shutdown, whether for passivation or hand-off.
type stopEntity struct{}

// extractEntityID classifies demo entity traffic, reusing the same
// deterministic routing key every PutCommand/GetCommand already
// carries explicitly.
func extractEntityID(message any) (id string, payload any, ok bool) {
	switch m := message.(type) {
	case PutCommand:
		return m.EntityID, m, true
	case GetCommand:
		return m.EntityID, m, true
	}
	return "", nil, false
}

// newEntityProps returns an EntityProps that spawns a demo entity
// worker over a shared EntityStore, registering the worker into reg
// under its raw entity id so a later hand-off (which decodes each
// worker name back to its id) or the /passivate handler can find it.
// store is shared across every
// entity in the shard, with each entity's keys held in their own
// namespace, so a passivated entity that respawns still sees its prior
// state.
func newEntityProps(reg *workerRegistry, store *storage.EntityStore, logger zerolog.Logger) shard.EntityProps {
	return func(id string, shardInbox chan<- shard.Envelope) *shard.Worker {
		w := shard.NewWorker(url.PathEscape(id), 32, shardInbox)
		reg.put(id, w)
		entityLogger := logger.With().Str("entity_id", id).Logger()

		go func() {
			defer func() {
				reg.remove(id)
				w.NotifyTerminated()
			}()
			for env := range w.Inbox() {
				switch msg := env.Message.(type) {
				case PutCommand:
					if err := store.Put(id, msg.Key, msg.Value); err != nil {
						entityLogger.Warn().Err(err).Str("key", msg.Key).Msg("put failed")
					}
				case GetCommand:
					value, err := store.Get(id, msg.Key)
					reply(env.Sender, GetResult{Value: value, Err: err}, w)
				case stopEntity:
					return
				}
			}
		}()
		return w
	}
}

// reply delivers message to sender if it implements shard.Receiver,
// mirroring the Shard package's own reply helper for harness code that
// sits outside that package.
func reply(sender shard.Sender, message any, from shard.Sender) {
	if r, ok := sender.(shard.Receiver); ok {
		r.Deliver(message, from)
	}
}

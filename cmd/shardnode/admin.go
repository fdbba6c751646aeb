package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreamware/shardkeeper/internal/shard"
)

// responseBox is a one-shot shard.Receiver that forwards the first
// reply it gets onto a channel, letting an HTTP handler block on a
// Shard's asynchronous reply the way a test probe blocks on one.
type responseBox struct {
	once sync.Once
	ch   chan any
}

func newResponseBox() *responseBox {
	return &responseBox{ch: make(chan any, 1)}
}

func (b *responseBox) Deliver(message any, _ shard.Sender) {
	b.once.Do(func() { b.ch <- message })
}

func (b *responseBox) await(timeout time.Duration) (any, bool) {
	select {
	case msg := <-b.ch:
		return msg, true
	case <-time.After(timeout):
		return nil, false
	}
}

// adminMux builds the harness's HTTP admin surface: shard introspection,
// manual passivation/hand-off triggers for local testing, a tiny
// key/value surface over the demo entities, and a Prometheus scrape
// endpoint.
func adminMux(s *shard.Shard, reg *workerRegistry, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/metrics", metricsHandler)

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		box := newResponseBox()
		s.Inbox() <- shard.Envelope{Message: shard.GetCurrentShardState{}, Sender: box}
		msg, ok := box.await(5 * time.Second)
		if !ok {
			http.Error(w, "timed out waiting for shard", http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, msg)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		box := newResponseBox()
		s.Inbox() <- shard.Envelope{Message: shard.GetShardStats{}, Sender: box}
		msg, ok := box.await(5 * time.Second)
		if !ok {
			http.Error(w, "timed out waiting for shard", http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, msg)
	})

	mux.HandleFunc("/handoff", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		box := newResponseBox()
		s.Inbox() <- shard.Envelope{Message: shard.HandOff{ShardID: s.ShardID()}, Sender: box}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/passivate/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/passivate/")
		entity, ok := reg.get(id)
		if !ok {
			http.Error(w, "no such live entity", http.StatusNotFound)
			return
		}
		s.Inbox() <- shard.Envelope{Message: shard.Passivate{StopMessage: stopEntity{}}, Sender: entity}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/entities/", func(w http.ResponseWriter, r *http.Request) {
		handleEntityRequest(s, w, r)
	})

	return mux
}

// handleEntityRequest implements PUT/GET on /entities/{id}/{key}
// against the demo key/value entities.
func handleEntityRequest(s *shard.Shard, w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/entities/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "expected /entities/{id}/{key}", http.StatusBadRequest)
		return
	}
	id, key := parts[0], parts[1]

	switch r.Method {
	case http.MethodPut:
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Inbox() <- shard.Envelope{Message: PutCommand{EntityID: id, Key: key, Value: body}}
		w.WriteHeader(http.StatusAccepted)
	case http.MethodGet:
		box := newResponseBox()
		s.Inbox() <- shard.Envelope{Message: GetCommand{EntityID: id, Key: key}, Sender: box}
		msg, ok := box.await(5 * time.Second)
		if !ok {
			http.Error(w, "timed out waiting for entity", http.StatusGatewayTimeout)
			return
		}
		result, ok := msg.(GetResult)
		if !ok {
			http.Error(w, "unexpected reply from entity", http.StatusInternalServerError)
			return
		}
		if result.Err != nil {
			http.Error(w, result.Err.Error(), http.StatusNotFound)
			return
		}
		w.Write(result.Value)
	default:
		http.Error(w, "GET or PUT only", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

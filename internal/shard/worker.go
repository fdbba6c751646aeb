package shard

import "sync"

// Worker is the Shard's handle on a spawned child — an entity actor or
// the per-shard hand-off stopper. It is deliberately minimal: the Shard
// only ever needs to send it messages and learn when it has stopped.
//
// Worker is comparable by pointer identity, which is what lets it serve
// as a map key in the Shard's idByRef/refById registries and as a
// member of the passivating set.
type Worker struct {
	// Name is the worker's registration name. EntityProps implementations
	// are expected to percent-encode the entity id before passing it to
	// NewWorker, so Name is safe to use as a path segment or log field
	// even when the entity id itself isn't.
	Name string

	inbox      chan Envelope
	shardInbox chan<- Envelope
	stopOnce   sync.Once
	stopped    chan struct{}
}

// NewWorker allocates a worker handle with the given buffered inbox
// capacity. shardInbox is the owning Shard's own mailbox, used by
// NotifyTerminated to report this worker's termination.
func NewWorker(name string, inboxCapacity int, shardInbox chan<- Envelope) *Worker {
	return &Worker{
		Name:       name,
		inbox:      make(chan Envelope, inboxCapacity),
		shardInbox: shardInbox,
		stopped:    make(chan struct{}),
	}
}

// Inbox returns the channel the worker's own goroutine should range
// over to receive messages sent via Send.
func (w *Worker) Inbox() <-chan Envelope {
	return w.inbox
}

// Send delivers a message to the worker, attributing it to sender.
// Send does not block indefinitely past the worker's termination: if
// the worker has already reported termination, Send is a silent no-op.
func (w *Worker) Send(message any, sender Sender) {
	select {
	case w.inbox <- Envelope{Message: message, Sender: sender}:
	case <-w.stopped:
	}
}

// NotifyTerminated reports this worker's termination to the owning
// Shard by enqueuing a Terminated envelope on its mailbox, then marks
// the worker locally stopped so further Sends are dropped. It is safe
// to call more than once; only the first call has effect.
func (w *Worker) NotifyTerminated() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.shardInbox <- Envelope{Message: Terminated{Ref: w}, Sender: w}
	})
}

// Done returns a channel closed once NotifyTerminated has run, for
// callers (typically the worker's own goroutine, or tests) that need
// to observe local termination without going through the Shard.
func (w *Worker) Done() <-chan struct{} {
	return w.stopped
}

package shard

// Receiver is the minimal capability a Sender must have for the Shard
// to deliver a reply to it. Sender itself stays an opaque `any` handle
// so that a bare string, a test probe, or a real network-backed
// coordinator proxy can all be used as senders; only types that also
// implement Receiver can be replied to.
type Receiver interface {
	Deliver(message any, from Sender)
}

// reply delivers message to sender, attributing it to from, if sender
// implements Receiver. Senders that don't (e.g. nil, or an opaque id
// used purely for bookkeeping) silently cannot be replied to — this
// mirrors dead-letter semantics for a reply with nowhere to go.
func reply(sender Sender, message any, from Sender) {
	if r, ok := sender.(Receiver); ok {
		r.Deliver(message, from)
	}
}

// Deliver makes *Shard itself usable as a Receiver: anything holding a
// reference to a running Shard (tests, the recovery scheduler, a
// back-off timer) can enqueue a message on its mailbox without reaching
// into the unexported inbox field.
func (s *Shard) Deliver(message any, from Sender) {
	s.inbox <- Envelope{Message: message, Sender: from}
}

// Deliver makes *Worker usable as a Receiver, e.g. so a Shard can
// preserve "the original sender" when forwarding application payloads.
func (w *Worker) Deliver(message any, from Sender) {
	w.Send(message, from)
}

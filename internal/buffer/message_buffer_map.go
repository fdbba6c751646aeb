package buffer

// emptyBuffer is returned by GetOrEmpty for ids that are not present in
// the map, so callers can inspect emptiness without allocating a real
// entry. It is never mutated.
var emptyBuffer = NewMessageBuffer()

// Map is a mapping from entity id to MessageBuffer.
//
// The presence of a key — even mapped to an empty buffer — is a
// semantic flag meaning "this entity is currently in a buffering
// window". Callers that want to test whether an id is buffering should
// use Contains, not buffer emptiness.
//
// Map is not safe for concurrent use; it is owned exclusively by one
// Shard's mailbox loop, same as MessageBuffer.
type Map struct {
	buffers map[string]*MessageBuffer
}

// NewMap returns an empty MessageBufferMap.
func NewMap() *Map {
	return &Map{buffers: make(map[string]*MessageBuffer)}
}

// Add marks id as buffering without enqueuing anything. If id is
// already present this is a no-op; its existing buffer (and any
// entries in it) is left untouched.
func (m *Map) Add(id string) {
	if _, ok := m.buffers[id]; ok {
		return
	}
	m.buffers[id] = NewMessageBuffer()
}

// Append lazily creates id's buffer if absent, then appends
// (message, sender) to it. After Append, Contains(id) is true and the
// buffer for id is non-empty.
func (m *Map) Append(id string, message any, sender Sender) {
	b, ok := m.buffers[id]
	if !ok {
		b = NewMessageBuffer()
		m.buffers[id] = b
	}
	b.Append(message, sender)
}

// Remove deletes id's entry entirely, discarding any unread pairs.
// Contains(id) is false afterward.
func (m *Map) Remove(id string) {
	delete(m.buffers, id)
}

// Contains reports whether id currently has a buffer-map entry — the
// flag for "id is in a buffering window".
func (m *Map) Contains(id string) bool {
	_, ok := m.buffers[id]
	return ok
}

// GetOrEmpty returns id's buffer if present, otherwise a shared,
// transient empty buffer. Calling this never creates a map entry; use
// Add or Append for that.
func (m *Map) GetOrEmpty(id string) *MessageBuffer {
	if b, ok := m.buffers[id]; ok {
		return b
	}
	return emptyBuffer
}

// Drain removes id's entry and returns its buffer to the caller,
// closing the buffering window before the caller flushes it — so that
// messages arriving while the flush is in progress take the direct
// delivery path instead of re-entering the buffer. If id has no entry,
// Drain returns a fresh empty buffer.
func (m *Map) Drain(id string) *MessageBuffer {
	if b, ok := m.buffers[id]; ok {
		delete(m.buffers, id)
		return b
	}
	return NewMessageBuffer()
}

// TotalSize returns the sum of every buffer's size, used to enforce the
// per-Shard cap on total in-flight buffered messages.
func (m *Map) TotalSize() int {
	total := 0
	for _, b := range m.buffers {
		total += b.Size()
	}
	return total
}

// Len returns the number of ids currently in a buffering window.
func (m *Map) Len() int {
	return len(m.buffers)
}

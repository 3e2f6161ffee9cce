// Package realtime is an in-process fan-out hub used to push search state
// changes to any number of listeners (CLI watchers, WebSocket sessions).
//
// Delivery is best effort and keeps only the newest value: each listener
// channel buffers one event, and a newer event replaces an unread one. A
// listener that falls behind therefore always catches up to the current
// state instead of replaying history.
package realtime

import "sync"

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	TypeInit   = "init"
	TypeResult = "result"
	TypeError  = "error"
)

func InitMessage(session string) Message {
	return Message{Type: TypeInit, Session: session}
}

func ResultMessage(result any) Message {
	return Message{Type: TypeResult, Result: result}
}

func ErrorMessage(err string) Message {
	return Message{Type: TypeError, Error: err}
}

// Hub is safe for concurrent use.
type Hub[T any] struct {
	mu        sync.Mutex
	listeners map[uint64]chan T
	nextID    uint64
	last      T
	hasLast   bool
	closed    bool
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{listeners: make(map[uint64]chan T)}
}

// Register adds a listener. When the hub has already broadcast something the
// newest value is delivered right away. Callers must Unregister(id). After
// Close the returned channel is already closed.
func (h *Hub[T]) Register() (uint64, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan T, 1)
	if h.closed {
		close(ch)
		return id, ch
	}
	if h.hasLast {
		ch <- h.last
	}
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub[T]) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers v to every listener, replacing any unread value.
func (h *Hub[T]) Broadcast(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = v
	h.hasLast = true
	for _, ch := range h.listeners {
		replace(ch, v)
	}
}

// Last returns the most recent broadcast value.
func (h *Hub[T]) Last() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.hasLast
}

// Close unregisters every listener. Later registrations get a closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.listeners {
		delete(h.listeners, id)
		close(ch)
	}
}

func (h *Hub[T]) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func replace[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	// Drop the stale value.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

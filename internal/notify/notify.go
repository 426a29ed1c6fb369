// Package notify delivers user-visible notifications (toasts) from the
// selector and workflow to whatever surface is attached: a WebSocket, the
// CLI, the log.
package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notification.
type Kind string

const (
	KindLoadFailure       Kind = "load_failure"
	KindValidationFailure Kind = "validation_failure"
	KindGenerationFailure Kind = "generation_failure"
	KindTransitionFailure Kind = "transition_failure"
	KindAuthFailure       Kind = "auth_failure"
	KindSuccess           Kind = "success"
)

// IsError reports whether the kind is a failure.
func (k Kind) IsError() bool {
	return k != KindSuccess
}

// Notification is one toast.
type Notification struct {
	Kind    Kind      `json:"kind"`
	Op      string    `json:"op,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Hub fans notifications out to registered sinks and logs every failure.
type Hub struct {
	sinks map[string]Notifier
	mu    sync.RWMutex
}

// NewHub creates a hub with no sinks.
func NewHub() *Hub {
	return &Hub{sinks: make(map[string]Notifier)}
}

// Register adds a sink under name, replacing any previous one.
func (h *Hub) Register(name string, n Notifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[name] = n
	slog.Debug("notification sink registered", "sink", name)
}

// Unregister removes the named sink.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, name)
}

// HasSink returns true if the named sink is registered.
func (h *Hub) HasSink(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sinks[name]
	return ok
}

func (h *Hub) Notify(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	if n.Kind.IsError() {
		slog.Warn("notification", "kind", n.Kind, "op", n.Op, "message", n.Message)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sinks {
		s.Notify(n)
	}
}

// Recorder keeps every notification in memory. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of what was recorded.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// Chan delivers notifications on a buffered channel. When the buffer is full
// the notification is dropped rather than blocking the caller.
type Chan struct {
	C chan Notification
}

// NewChan creates a channel sink with the given buffer size.
func NewChan(size int) *Chan {
	return &Chan{C: make(chan Notification, size)}
}

func (c *Chan) Notify(n Notification) {
	select {
	case c.C <- n:
	default:
		slog.Warn("notification dropped, subscriber is slow", "kind", n.Kind)
	}
}

// Func adapts a function to Notifier.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

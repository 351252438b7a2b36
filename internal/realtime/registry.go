// Package realtime delivers server-pushed events to client-side listeners.
package realtime

import (
	"sync"
	"time"
)

// EventShowWeeks asks the client to open the week dialog.
const EventShowWeeks = "Dialog Show Redis Weeks"

// Event is a pushed message. An empty User targets every session.
type Event struct {
	ID        string         `json:"id"`
	Name      string         `json:"event"`
	User      string         `json:"user,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler reacts to a dispatched event.
type Handler func(Event)

// Registry keeps at most one handler per event name for the lifetime of a
// session. Lifecycle hooks may ask to register repeatedly; only the first
// request attaches.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Attach registers h for name unless a handler is already attached.
// It reports whether h was attached.
func (r *Registry) Attach(name string, h Handler) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[name]; ok {
		return false
	}
	r.handlers[name] = h
	return true
}

// Dispatch runs the handler for ev.Name and reports whether one ran.
func (r *Registry) Dispatch(ev Event) bool {
	r.mu.RLock()
	h, ok := r.handlers[ev.Name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	h(ev)
	return true
}

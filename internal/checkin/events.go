package checkin

import (
	"context"
	"time"
)

// EventType identifies a registry state change
type EventType string

const (
	EventSessionCreated   EventType = "session_created"
	EventCheckedIn        EventType = "checked_in"
	EventCheckedOut       EventType = "checked_out"
	EventNoShow           EventType = "no_show"
	EventSessionClosed    EventType = "session_closed"
	EventSessionCancelled EventType = "session_cancelled"
)

// Event describes a committed registry change. Session is a snapshot taken
// right after the change.
type Event struct {
	Type     EventType
	Session  Session
	PlayerID string
	Username string
	Position int
	At       time.Time
}

// Observer receives registry events after they are persisted
type Observer interface {
	HandleCheckInEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) HandleCheckInEvent(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Subscribe registers an observer for all future events
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

func (r *Registry) publish(ctx context.Context, ev Event) {
	r.obsMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.obsMu.RUnlock()

	for _, o := range observers {
		o.HandleCheckInEvent(ctx, ev)
	}
}

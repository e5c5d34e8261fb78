// Package reminder derives one-shot reminders from check-in sessions and
// fires each of them at most once on a periodic tick.
package reminder

import (
	"fmt"
	"time"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
)

// Kind names a family of reminders
type Kind string

const (
	KindSessionStart    Kind = "session_start"
	KindCheckinDeadline Kind = "checkin_deadline"
	KindSessionEnd      Kind = "session_end"
	KindCheckout        Kind = "checkout_reminder"
	KindSessionStarted  Kind = "session_started"
	KindCustom          Kind = "custom"
)

// SessionKinds lists the kinds derived from sessions, in evaluation order
var SessionKinds = []Kind{KindSessionStart, KindSessionStarted, KindCheckinDeadline, KindSessionEnd, KindCheckout}

// CheckinWindow is how long after the start check-ins are expected
const CheckinWindow = 15 * time.Minute

// Direction tells whether a reminder fires before or after its anchor
type Direction int

const (
	Before Direction = iota
	After
	Exact
)

// ParseKind validates a session reminder kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	for _, known := range SessionKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown reminder kind %q", ErrInvalidSettings, s)
}

// Direction returns the firing direction of k
func (k Kind) Direction() Direction {
	switch k {
	case KindCheckout:
		return After
	case KindCustom, KindSessionStarted:
		return Exact
	default:
		return Before
	}
}

// Label returns a human readable name
func (k Kind) Label() string {
	switch k {
	case KindSessionStart:
		return "Session start"
	case KindSessionStarted:
		return "Start announcement"
	case KindCheckinDeadline:
		return "Check-in deadline"
	case KindSessionEnd:
		return "Session end"
	case KindCheckout:
		return "Check-out"
	case KindCustom:
		return "Custom"
	default:
		return string(k)
	}
}

// Anchor returns the instant a session reminder of kind k is relative to
func (k Kind) Anchor(s checkin.Session) time.Time {
	switch k {
	case KindCheckinDeadline:
		return s.StartTime.Add(CheckinWindow)
	case KindSessionEnd, KindCheckout:
		return s.EndTime
	default:
		return s.StartTime
	}
}

// Reminder is one concrete reminder instance of a session
type Reminder struct {
	Key           string
	SessionID     string
	Kind          Kind
	OffsetMinutes int
	Anchor        time.Time
	DueAt         time.Time
	Fired         bool
}

func newReminder(s checkin.Session, kind Kind, offset int) Reminder {
	anchor := kind.Anchor(s)
	delta := time.Duration(offset) * time.Minute

	due := anchor
	switch kind.Direction() {
	case Before:
		due = anchor.Add(-delta)
	case After:
		due = anchor.Add(delta)
	}

	return Reminder{
		Key:           sessionKey(s.ID, kind, offset),
		SessionID:     s.ID,
		Kind:          kind,
		OffsetMinutes: offset,
		Anchor:        anchor,
		DueAt:         due,
	}
}

// due reports whether r should fire at now. Before reminders never fire once
// their anchor has passed and the start announcement only fires during the
// check-in window. Other reminders stop being eligible once the ledger may
// have forgotten them.
func (r Reminder) due(now time.Time, retention time.Duration) bool {
	if now.Before(r.DueAt) {
		return false
	}
	switch {
	case r.Kind.Direction() == Before:
		return now.Before(r.Anchor)
	case r.Kind == KindSessionStarted:
		return now.Before(r.Anchor.Add(CheckinWindow))
	default:
		return now.Before(r.DueAt.Add(retention))
	}
}

func sessionKey(sessionID string, kind Kind, offset int) string {
	return fmt.Sprintf("%s:%s:%d", sessionID, kind, offset)
}

func customKey(id string) string {
	return "custom:" + id
}

package checkin

import (
	"fmt"
	"strings"
	"time"
)

// SessionType is the kind of clan activity a session schedules
type SessionType string

const (
	SessionTypeScrim       SessionType = "scrim"
	SessionTypeRanked      SessionType = "ranked"
	SessionTypeMatchmaking SessionType = "mm"
	SessionTypeTournament  SessionType = "tournament"
)

// SessionTypes lists every session type in display order
var SessionTypes = []SessionType{SessionTypeScrim, SessionTypeRanked, SessionTypeMatchmaking, SessionTypeTournament}

// ParseSessionType accepts the stored value or its long form ("matchmaking").
func ParseSessionType(s string) (SessionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "scrim":
		return SessionTypeScrim, nil
	case "ranked":
		return SessionTypeRanked, nil
	case "mm", "matchmaking":
		return SessionTypeMatchmaking, nil
	case "tournament":
		return SessionTypeTournament, nil
	default:
		return "", fmt.Errorf("%w: unknown session type %q", ErrInvalidSession, s)
	}
}

// Label returns a human readable name
func (t SessionType) Label() string {
	switch t {
	case SessionTypeScrim:
		return "Scrim"
	case SessionTypeRanked:
		return "Ranked"
	case SessionTypeMatchmaking:
		return "Matchmaking"
	case SessionTypeTournament:
		return "Tournament"
	default:
		return string(t)
	}
}

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusClosed    SessionStatus = "closed"
	StatusCancelled SessionStatus = "cancelled"
)

// PlayerStatus is a player's state within one session
type PlayerStatus string

const (
	PlayerCheckedIn  PlayerStatus = "checked_in"
	PlayerCheckedOut PlayerStatus = "checked_out"
	PlayerNoShow     PlayerStatus = "no_show"
)

// PlayerCheckIn is one player's record in a session
type PlayerCheckIn struct {
	Username     string       `json:"username"`
	CheckinTime  *time.Time   `json:"checkin_time"`
	CheckoutTime *time.Time   `json:"checkout_time"`
	Status       PlayerStatus `json:"status"`
}

// Session is a scheduled block of clan activity with a check-in window
type Session struct {
	ID            string                    `json:"id"`
	Type          SessionType               `json:"type"`
	StartTime     time.Time                 `json:"start_time"`
	EndTime       time.Time                 `json:"end_time"`
	MaxPlayers    *int                      `json:"max_players"`
	Description   string                    `json:"description"`
	CreatedAt     time.Time                 `json:"created_at"`
	Status        SessionStatus             `json:"status"`
	Players       map[string]*PlayerCheckIn `json:"players"`
	CheckinCount  int                       `json:"checkin_count"`
	CheckoutCount int                       `json:"checkout_count"`
	ClosedAt      *time.Time                `json:"closed_at,omitempty"`
	CancelledAt   *time.Time                `json:"cancelled_at,omitempty"`

	// Routing and ownership for announcements.
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

// IsActive reports whether the session still accepts check-ins
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// Full reports whether the session has reached its player limit
func (s *Session) Full() bool {
	return s.MaxPlayers != nil && s.CheckinCount >= *s.MaxPlayers
}

// SlotsLeft returns the remaining capacity, or -1 when unlimited
func (s *Session) SlotsLeft() int {
	if s.MaxPlayers == nil {
		return -1
	}
	left := *s.MaxPlayers - s.CheckinCount
	if left < 0 {
		return 0
	}
	return left
}

// recount derives the counters from the players map.
func (s *Session) recount() {
	s.CheckinCount, s.CheckoutCount = 0, 0
	for _, p := range s.Players {
		switch p.Status {
		case PlayerCheckedIn:
			s.CheckinCount++
		case PlayerCheckedOut:
			s.CheckoutCount++
		}
	}
}

// Clone returns a deep copy safe to hand outside the registry
func (s *Session) Clone() Session {
	out := *s
	if s.MaxPlayers != nil {
		n := *s.MaxPlayers
		out.MaxPlayers = &n
	}
	out.ClosedAt = cloneTime(s.ClosedAt)
	out.CancelledAt = cloneTime(s.CancelledAt)
	out.Players = make(map[string]*PlayerCheckIn, len(s.Players))
	for id, p := range s.Players {
		cp := *p
		cp.CheckinTime = cloneTime(p.CheckinTime)
		cp.CheckoutTime = cloneTime(p.CheckoutTime)
		out.Players[id] = &cp
	}
	return out
}

// TypeCounts holds per-session-type counters
type TypeCounts struct {
	Checkins  int `json:"checkins"`
	Checkouts int `json:"checkouts"`
}

// PlayerStats aggregates a player's activity across sessions
type PlayerStats struct {
	Username       string                      `json:"username"`
	TotalCheckins  int                         `json:"total_checkins"`
	TotalCheckouts int                         `json:"total_checkouts"`
	NoShows        int                         `json:"no_shows"`
	ByType         map[SessionType]*TypeCounts `json:"by_type"`
	LastActivity   *time.Time                  `json:"last_activity"`
}

func newPlayerStats(username string) *PlayerStats {
	byType := make(map[SessionType]*TypeCounts, len(SessionTypes))
	for _, t := range SessionTypes {
		byType[t] = &TypeCounts{}
	}
	return &PlayerStats{Username: username, ByType: byType}
}

func (p *PlayerStats) clone() PlayerStats {
	out := *p
	out.LastActivity = cloneTime(p.LastActivity)
	out.ByType = make(map[SessionType]*TypeCounts, len(p.ByType))
	for t, c := range p.ByType {
		cp := *c
		out.ByType[t] = &cp
	}
	return out
}

func (p *PlayerStats) counts(t SessionType) *TypeCounts {
	if p.ByType == nil {
		p.ByType = make(map[SessionType]*TypeCounts)
	}
	c, ok := p.ByType[t]
	if !ok {
		c = &TypeCounts{}
		p.ByType[t] = c
	}
	return c
}

// CheckInResult is returned by CheckIn
type CheckInResult struct {
	Position    int
	CheckinTime time.Time
	Session     Session
}

// CheckOutResult is returned by CheckOut
type CheckOutResult struct {
	CheckoutTime time.Time
	Session      Session
}

// PlayerSession is a session annotated with one player's record
type PlayerSession struct {
	Session Session
	Player  PlayerCheckIn
}

// SessionInfo is the descriptive part of a summary
type SessionInfo struct {
	ID          string
	Type        SessionType
	Description string
	Status      SessionStatus
	StartTime   time.Time
	EndTime     time.Time
	MaxPlayers  *int
}

// SummaryStats are the counters of a summary
type SummaryStats struct {
	TotalPlayers int
	CheckedIn    int
	CheckedOut   int
	NoShows      int
}

// Summary is the result of GetSessionSummary
type Summary struct {
	SessionInfo SessionInfo
	Stats       SummaryStats
	Players     map[string]PlayerCheckIn
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Package checkin owns check-in sessions and per-player check-in state.
// All capacity and status rules are enforced here.
package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

// DocumentKey is the store key holding sessions and player stats
const DocumentKey = "checkin_system"

const defaultPlayerSessionsLimit = 10

type document struct {
	Sessions    map[string]*Session     `json:"sessions"`
	PlayerStats map[string]*PlayerStats `json:"player_stats"`
}

// Registry is the single source of truth for sessions and check-ins.
// Every mutation is serialized by mu and persisted before it becomes visible.
type Registry struct {
	mu     sync.Mutex
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
	doc    document

	obsMu     sync.RWMutex
	observers []Observer
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the registry logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry on top of store. Call Load to read
// previously persisted state.
func NewRegistry(store storage.Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		doc: document{
			Sessions:    make(map[string]*Session),
			PlayerStats: make(map[string]*PlayerStats),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory state with the persisted document.
func (r *Registry) Load(ctx context.Context) error {
	var doc document
	ok, err := storage.GetJSON(ctx, r.store, DocumentKey, &doc)
	if err != nil {
		return fmt.Errorf("load check-in data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !ok {
		r.logger.Info("No check-in data found, starting empty")
		return nil
	}
	if doc.Sessions == nil {
		doc.Sessions = make(map[string]*Session)
	}
	if doc.PlayerStats == nil {
		doc.PlayerStats = make(map[string]*PlayerStats)
	}
	for id, st := range doc.PlayerStats {
		if st == nil {
			r.logger.Warn("Dropping empty player stats entry", "player", id)
			delete(doc.PlayerStats, id)
		}
	}
	for id, s := range doc.Sessions {
		if s == nil {
			r.logger.Warn("Dropping empty session entry", "session", id)
			delete(doc.Sessions, id)
			continue
		}
		for pid, p := range s.Players {
			if p == nil {
				r.logger.Warn("Dropping empty player entry", "session", id, "player", pid)
				delete(s.Players, pid)
			}
		}
		if s.Players == nil {
			s.Players = make(map[string]*PlayerCheckIn)
		}
		if s.ID == "" {
			s.ID = id
		}
		// Older documents kept cumulative counters; derive them again.
		s.recount()
	}
	r.doc = doc

	r.logger.Info("Loaded check-in data", "sessions", len(doc.Sessions), "players", len(doc.PlayerStats))
	return nil
}

// NewSession holds the parameters of CreateSession
type NewSession struct {
	ID          string
	Type        SessionType
	StartTime   time.Time
	EndTime     time.Time
	MaxPlayers  *int
	Description string
	GuildID     string
	ChannelID   string
	CreatedBy   string
}

// CreateSession registers a new active session and persists it.
// The caller is responsible for EndTime being after StartTime.
func (r *Registry) CreateSession(ctx context.Context, p NewSession) (Session, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return Session{}, fmt.Errorf("%w: id is required", ErrInvalidSession)
	}
	if _, err := ParseSessionType(string(p.Type)); err != nil {
		return Session{}, err
	}
	if p.MaxPlayers != nil && *p.MaxPlayers <= 0 {
		return Session{}, fmt.Errorf("%w: max players must be positive", ErrInvalidSession)
	}

	sess, err := func() (Session, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if _, exists := r.doc.Sessions[id]; exists {
			return Session{}, fmt.Errorf("session %s: %w", id, ErrDuplicateSession)
		}

		snap := r.snapshot(id, "")
		s := &Session{
			ID:          id,
			Type:        p.Type,
			StartTime:   p.StartTime,
			EndTime:     p.EndTime,
			MaxPlayers:  p.MaxPlayers,
			Description: p.Description,
			CreatedAt:   r.now(),
			Status:      StatusActive,
			Players:     make(map[string]*PlayerCheckIn),
			GuildID:     p.GuildID,
			ChannelID:   p.ChannelID,
			CreatedBy:   p.CreatedBy,
		}
		if p.MaxPlayers != nil {
			n := *p.MaxPlayers
			s.MaxPlayers = &n
		}
		r.doc.Sessions[id] = s

		if err := r.commit(ctx, "create session", snap); err != nil {
			return Session{}, err
		}
		return s.Clone(), nil
	}()
	if err != nil {
		return Session{}, err
	}

	r.logger.Info("Session created", "session", sess.ID, "type", sess.Type, "start", sess.StartTime)
	r.publish(ctx, Event{Type: EventSessionCreated, Session: sess, At: sess.CreatedAt})
	return sess, nil
}

// CheckIn records a player's arrival. Re-checking in after a check-out or a
// no-show replaces the previous record.
func (r *Registry) CheckIn(ctx context.Context, sessionID, playerID, username string) (CheckInResult, error) {
	res, err := func() (CheckInResult, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		s, ok := r.doc.Sessions[sessionID]
		if !ok {
			return CheckInResult{}, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		if !s.IsActive() {
			return CheckInResult{}, fmt.Errorf("session %s is %s: %w", sessionID, s.Status, ErrSessionNotActive)
		}
		if s.Full() {
			return CheckInResult{}, fmt.Errorf("session %s: %w", sessionID, ErrSessionFull)
		}
		if p, exists := s.Players[playerID]; exists && p.Status == PlayerCheckedIn {
			return CheckInResult{}, fmt.Errorf("player %s in session %s: %w", playerID, sessionID, ErrAlreadyCheckedIn)
		}

		snap := r.snapshot(sessionID, playerID)
		now := r.now()
		s.Players[playerID] = &PlayerCheckIn{
			Username:    username,
			CheckinTime: &now,
			Status:      PlayerCheckedIn,
		}
		s.recount()

		stats := r.statsFor(playerID, username)
		stats.Username = username
		stats.TotalCheckins++
		stats.counts(s.Type).Checkins++
		stats.LastActivity = &now

		if err := r.commit(ctx, "check in", snap); err != nil {
			return CheckInResult{}, err
		}
		return CheckInResult{Position: s.CheckinCount, CheckinTime: now, Session: s.Clone()}, nil
	}()
	if err != nil {
		return CheckInResult{}, err
	}

	r.logger.Info("Player checked in", "session", sessionID, "player", playerID, "position", res.Position)
	r.publish(ctx, Event{
		Type:     EventCheckedIn,
		Session:  res.Session,
		PlayerID: playerID,
		Username: username,
		Position: res.Position,
		At:       res.CheckinTime,
	})
	return res, nil
}

// CheckOut records a player's departure. The session does not need to be
// active, since check-outs are expected after it ends.
func (r *Registry) CheckOut(ctx context.Context, sessionID, playerID string) (CheckOutResult, error) {
	var username string
	res, err := func() (CheckOutResult, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		s, ok := r.doc.Sessions[sessionID]
		if !ok {
			return CheckOutResult{}, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		p, exists := s.Players[playerID]
		if !exists || p.Status == PlayerNoShow {
			return CheckOutResult{}, fmt.Errorf("player %s in session %s: %w", playerID, sessionID, ErrPlayerNotCheckedIn)
		}
		if p.Status == PlayerCheckedOut {
			return CheckOutResult{}, fmt.Errorf("player %s in session %s: %w", playerID, sessionID, ErrAlreadyCheckedOut)
		}

		snap := r.snapshot(sessionID, playerID)
		now := r.now()
		p.CheckoutTime = &now
		p.Status = PlayerCheckedOut
		s.recount()
		username = p.Username

		stats := r.statsFor(playerID, p.Username)
		stats.TotalCheckouts++
		stats.counts(s.Type).Checkouts++
		stats.LastActivity = &now

		if err := r.commit(ctx, "check out", snap); err != nil {
			return CheckOutResult{}, err
		}
		return CheckOutResult{CheckoutTime: now, Session: s.Clone()}, nil
	}()
	if err != nil {
		return CheckOutResult{}, err
	}

	r.logger.Info("Player checked out", "session", sessionID, "player", playerID)
	r.publish(ctx, Event{
		Type:     EventCheckedOut,
		Session:  res.Session,
		PlayerID: playerID,
		Username: username,
		At:       res.CheckoutTime,
	})
	return res, nil
}

// MarkNoShow flags a player as absent whatever their current state, creating
// a record when the player never checked in.
func (r *Registry) MarkNoShow(ctx context.Context, sessionID, playerID string) error {
	var (
		snapshot Session
		username string
		at       time.Time
	)
	err := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()

		s, ok := r.doc.Sessions[sessionID]
		if !ok {
			return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}

		snap := r.snapshot(sessionID, playerID)
		stats := r.statsFor(playerID, "")
		p, exists := s.Players[playerID]
		if !exists {
			p = &PlayerCheckIn{Username: stats.Username}
			s.Players[playerID] = p
		}
		p.Status = PlayerNoShow
		s.recount()
		stats.NoShows++

		if err := r.commit(ctx, "mark no-show", snap); err != nil {
			return err
		}
		snapshot = s.Clone()
		username = p.Username
		at = r.now()
		return nil
	}()
	if err != nil {
		return err
	}

	r.logger.Info("Player marked as no-show", "session", sessionID, "player", playerID)
	r.publish(ctx, Event{Type: EventNoShow, Session: snapshot, PlayerID: playerID, Username: username, At: at})
	return nil
}

// CloseSession moves an active session to closed. It reports false, without
// error, when the session does not exist or is no longer active.
func (r *Registry) CloseSession(ctx context.Context, sessionID string) (Session, bool, error) {
	return r.finish(ctx, sessionID, StatusClosed)
}

// CancelSession moves an active session to cancelled. It reports false when
// the session does not exist or is already closed or cancelled.
func (r *Registry) CancelSession(ctx context.Context, sessionID string) (bool, error) {
	_, ok, err := r.finish(ctx, sessionID, StatusCancelled)
	return ok, err
}

func (r *Registry) finish(ctx context.Context, sessionID string, status SessionStatus) (Session, bool, error) {
	sess, changed, err := func() (Session, bool, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		s, ok := r.doc.Sessions[sessionID]
		if !ok {
			return Session{}, false, nil
		}
		if !s.IsActive() {
			return s.Clone(), false, nil
		}

		snap := r.snapshot(sessionID, "")
		now := r.now()
		s.Status = status
		if status == StatusClosed {
			s.ClosedAt = &now
		} else {
			s.CancelledAt = &now
		}

		if err := r.commit(ctx, string(status)+" session", snap); err != nil {
			return Session{}, false, err
		}
		return s.Clone(), true, nil
	}()
	if err != nil || !changed {
		return sess, false, err
	}

	ev := Event{Type: EventSessionClosed, Session: sess, At: r.now()}
	if status == StatusCancelled {
		ev.Type = EventSessionCancelled
	}
	r.logger.Info("Session finished", "session", sessionID, "status", status)
	r.publish(ctx, ev)
	return sess, true, nil
}

// GetSession returns a copy of one session
func (r *Registry) GetSession(sessionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.doc.Sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return s.Clone(), true
}

// GetActiveSessions returns every active session ordered by start time
func (r *Registry) GetActiveSessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]Session, 0)
	for _, s := range r.doc.Sessions {
		if s.IsActive() {
			active = append(active, s.Clone())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].StartTime.Equal(active[j].StartTime) {
			return active[i].ID < active[j].ID
		}
		return active[i].StartTime.Before(active[j].StartTime)
	})
	return active
}

// ListSessions returns every session, most recently created first
func (r *Registry) ListSessions() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]Session, 0, len(r.doc.Sessions))
	for _, s := range r.doc.Sessions {
		all = append(all, s.Clone())
	}
	sortByCreatedDesc(all, func(i int) Session { return all[i] })
	return all
}

// GetPlayerSessions returns the sessions a player has a record in, most
// recently created first. A non-positive limit means 10.
func (r *Registry) GetPlayerSessions(playerID string, limit int) []PlayerSession {
	if limit <= 0 {
		limit = defaultPlayerSessionsLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]PlayerSession, 0)
	for _, s := range r.doc.Sessions {
		if _, ok := s.Players[playerID]; !ok {
			continue
		}
		clone := s.Clone()
		out = append(out, PlayerSession{Session: clone, Player: *clone.Players[playerID]})
	}
	sortByCreatedDesc(out, func(i int) Session { return out[i].Session })

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetSessionSummary returns descriptive info, counters and the players of a
// session. It reports false when the session does not exist.
func (r *Registry) GetSessionSummary(sessionID string) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.doc.Sessions[sessionID]
	if !ok {
		return Summary{}, false
	}

	clone := s.Clone()
	summary := Summary{
		SessionInfo: SessionInfo{
			ID:          clone.ID,
			Type:        clone.Type,
			Description: clone.Description,
			Status:      clone.Status,
			StartTime:   clone.StartTime,
			EndTime:     clone.EndTime,
			MaxPlayers:  clone.MaxPlayers,
		},
		Stats: SummaryStats{
			TotalPlayers: len(clone.Players),
			CheckedIn:    clone.CheckinCount,
			CheckedOut:   clone.CheckoutCount,
		},
		Players: make(map[string]PlayerCheckIn, len(clone.Players)),
	}
	for id, p := range clone.Players {
		if p.Status == PlayerNoShow {
			summary.Stats.NoShows++
		}
		summary.Players[id] = *p
	}
	return summary, true
}

// GetPlayerStats returns a player's aggregate stats, zeroed when unknown
func (r *Registry) GetPlayerStats(playerID string) PlayerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stats, ok := r.doc.PlayerStats[playerID]; ok {
		return stats.clone()
	}
	return newPlayerStats("").clone()
}

// statsFor returns the live stats of a player, creating them on first use.
// Callers must hold mu.
func (r *Registry) statsFor(playerID, username string) *PlayerStats {
	stats, ok := r.doc.PlayerStats[playerID]
	if !ok {
		stats = newPlayerStats(username)
		r.doc.PlayerStats[playerID] = stats
	}
	return stats
}

// snapshot captures what a mutation may touch so commit can undo it.
type snapshot struct {
	sessionID string
	session   *Session
	playerID  string
	stats     *PlayerStats
}

func (r *Registry) snapshot(sessionID, playerID string) snapshot {
	snap := snapshot{sessionID: sessionID, playerID: playerID}
	if s, ok := r.doc.Sessions[sessionID]; ok {
		clone := s.Clone()
		snap.session = &clone
	}
	if playerID != "" {
		if stats, ok := r.doc.PlayerStats[playerID]; ok {
			clone := stats.clone()
			snap.stats = &clone
		}
	}
	return snap
}

func (r *Registry) restore(snap snapshot) {
	if snap.session != nil {
		r.doc.Sessions[snap.sessionID] = snap.session
	} else {
		delete(r.doc.Sessions, snap.sessionID)
	}
	if snap.playerID == "" {
		return
	}
	if snap.stats != nil {
		r.doc.PlayerStats[snap.playerID] = snap.stats
	} else {
		delete(r.doc.PlayerStats, snap.playerID)
	}
}

// commit persists the document, rolling back to snap on failure.
// Callers must hold mu.
func (r *Registry) commit(ctx context.Context, op string, snap snapshot) error {
	if err := storage.SetJSON(ctx, r.store, DocumentKey, &r.doc); err != nil {
		r.restore(snap)
		r.logger.Error("Failed to persist check-in data", "op", op, "session", snap.sessionID, "error", err)
		return &PersistError{Op: op, Err: err}
	}
	return nil
}

func sortByCreatedDesc[T any](items []T, session func(i int) Session) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := session(i), session(j)
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

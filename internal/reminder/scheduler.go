package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

// DefaultRetention is how long fired records and old custom reminders are kept
const DefaultRetention = 7 * 24 * time.Hour

// SessionSource lists the sessions reminders are derived from
type SessionSource interface {
	ListSessions() []checkin.Session
}

// Notifier delivers fired reminders. Errors are logged by the scheduler and
// never cause a reminder to fire again.
type Notifier interface {
	SessionReminder(ctx context.Context, sess checkin.Session, r Reminder) error
	CustomReminder(ctx context.Context, c CustomReminder) error
}

// Scheduler evaluates reminders on every Tick
type Scheduler struct {
	sessions  SessionSource
	notifier  Notifier
	ledger    Ledger
	store     storage.Store
	logger    *slog.Logger
	now       func() time.Time
	retention time.Duration

	// tickMu keeps ticks and cleanups from overlapping; mu guards doc.
	tickMu sync.Mutex
	mu     sync.Mutex
	doc    settingsDocument
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the scheduler logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRetention overrides DefaultRetention
func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewScheduler creates a scheduler with default settings. Call Load to read
// persisted settings and custom reminders.
func NewScheduler(sessions SessionSource, notifier Notifier, ledger Ledger, store storage.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		sessions:  sessions,
		notifier:  notifier,
		ledger:    ledger,
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		retention: DefaultRetention,
		doc: settingsDocument{
			Settings: DefaultSettings(),
			Custom:   make(map[string]*CustomReminder),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads persisted settings and custom reminders
func (s *Scheduler) Load(ctx context.Context) error {
	var doc settingsDocument
	ok, err := storage.GetJSON(ctx, s.store, SettingsKey, &doc)
	if err != nil {
		return fmt.Errorf("load reminder settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		return nil
	}
	doc.Settings = doc.Settings.withDefaults()
	if doc.Custom == nil {
		doc.Custom = make(map[string]*CustomReminder)
	}
	s.doc = doc

	s.logger.Info("Loaded reminder settings", "custom_reminders", len(doc.Custom))
	return nil
}

// Settings returns a copy of the current settings
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Settings.clone()
}

// UpdateSettings changes one session kind. A nil enabled or empty offsets
// leaves that part untouched.
func (s *Scheduler) UpdateSettings(ctx context.Context, kind Kind, enabled *bool, offsets []int) (Settings, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return Settings{}, err
	}
	var normalized []int
	if len(offsets) > 0 {
		if kind.Direction() == Exact {
			return Settings{}, fmt.Errorf("%w: %s always fires at the start time", ErrInvalidSettings, kind)
		}
		var err error
		if normalized, err = normalizeOffsets(offsets); err != nil {
			return Settings{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.clone()
	if enabled != nil {
		s.doc.Settings.Enabled[kind] = *enabled
	}
	if normalized != nil {
		s.doc.Settings.Offsets[kind] = normalized
	}
	if err := s.save(ctx, prev); err != nil {
		return Settings{}, err
	}

	s.logger.Info("Reminder settings updated", "kind", kind,
		"enabled", s.doc.Settings.Enabled[kind], "offsets", s.doc.Settings.Offsets[kind])
	return s.doc.Settings.clone(), nil
}

// Schedule lists the reminders of a session under the current settings,
// ordered by due time, with their fired state.
func (s *Scheduler) Schedule(ctx context.Context, sess checkin.Session) ([]Reminder, error) {
	reminders := s.sessionReminders(sess)
	for i := range reminders {
		fired, err := s.ledger.Fired(ctx, reminders[i].Key)
		if err != nil {
			return nil, err
		}
		reminders[i].Fired = fired
	}
	sort.SliceStable(reminders, func(i, j int) bool {
		return reminders[i].DueAt.Before(reminders[j].DueAt)
	})
	return reminders, nil
}

func (s *Scheduler) sessionReminders(sess checkin.Session) []Reminder {
	settings := s.Settings()

	out := make([]Reminder, 0)
	for _, kind := range SessionKinds {
		if !settings.Enabled[kind] {
			continue
		}
		for _, offset := range settings.Offsets[kind] {
			out = append(out, newReminder(sess, kind, offset))
		}
	}
	return out
}

type pendingSession struct {
	session  checkin.Session
	reminder Reminder
}

// Tick fires every due reminder once and returns how many fired. Each
// reminder is claimed in the ledger right before its own dispatch, so a
// cancelled tick leaves the remaining ones for the next tick. A panic inside
// the tick is logged and ends it early.
func (s *Scheduler) Tick(ctx context.Context) (fired int, err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Reminder tick panicked", "panic", r)
			err = fmt.Errorf("reminder tick panicked: %v", r)
		}
	}()

	now := s.now()

	for _, p := range s.dueSessionReminders(now) {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if !s.claim(ctx, p.reminder.Key, now) {
			continue
		}
		p.reminder.Fired = true
		fired++
		if err := s.notifier.SessionReminder(ctx, p.session, p.reminder); err != nil {
			s.logger.Warn("Failed to deliver session reminder",
				"session", p.session.ID, "kind", p.reminder.Kind, "offset", p.reminder.OffsetMinutes, "error", err)
			continue
		}
		s.logger.Info("Session reminder sent",
			"session", p.session.ID, "kind", p.reminder.Kind, "offset", p.reminder.OffsetMinutes)
	}

	for _, id := range s.dueCustomReminders(now) {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		c, ok := s.claimCustom(ctx, id, now)
		if !ok {
			continue
		}
		fired++
		if err := s.notifier.CustomReminder(ctx, c); err != nil {
			s.logger.Warn("Failed to deliver custom reminder", "reminder", c.ID, "error", err)
			continue
		}
		s.logger.Info("Custom reminder sent", "reminder", c.ID)
	}

	return fired, nil
}

// dueSessionReminders lists the due session reminders. Non-active sessions
// only keep their after-end reminders.
func (s *Scheduler) dueSessionReminders(now time.Time) []pendingSession {
	sessions := s.sessions.ListSessions()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	out := make([]pendingSession, 0)
	for _, sess := range sessions {
		for _, r := range s.sessionReminders(sess) {
			if !sess.IsActive() && r.Kind.Direction() != After {
				continue
			}
			if !r.due(now, s.retention) {
				continue
			}
			out = append(out, pendingSession{session: sess, reminder: r})
		}
	}
	return out
}

// dueCustomReminders returns the ids of unsent custom reminders that are due,
// oldest first.
func (s *Scheduler) dueCustomReminders(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.doc.Custom))
	for id, c := range s.doc.Custom {
		if c.SentAt != nil || now.Before(c.FireAt) || !now.Before(c.FireAt.Add(s.retention)) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.doc.Custom[ids[i]], s.doc.Custom[ids[j]]
		if a.FireAt.Equal(b.FireAt) {
			return ids[i] < ids[j]
		}
		return a.FireAt.Before(b.FireAt)
	})
	return ids
}

// claimCustom claims a custom reminder and marks it sent. It reports false
// when the reminder was deleted meanwhile or another scheduler owns it.
func (s *Scheduler) claimCustom(ctx context.Context, id string, now time.Time) (CustomReminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.doc.Custom[id]
	if !ok || c.SentAt != nil {
		return CustomReminder{}, false
	}
	if !s.claim(ctx, customKey(id), now) {
		return CustomReminder{}, false
	}

	prev := s.doc.clone()
	sent := now
	c.SentAt = &sent
	// The ledger already guards against refiring, so a failed write only
	// loses the sent marker on disk.
	if err := s.save(ctx, prev); err != nil {
		s.logger.Warn("Failed to persist sent custom reminder", "reminder", id, "error", err)
		if cur, ok := s.doc.Custom[id]; ok {
			cur.SentAt = &sent
		}
	}
	return c.clone(), true
}

// claim records key in the ledger and reports whether this caller owns it.
func (s *Scheduler) claim(ctx context.Context, key string, now time.Time) bool {
	first, err := s.ledger.MarkFired(ctx, key, now)
	if err != nil {
		s.logger.Error("Failed to record fired reminder", "key", key, "error", err)
		return false
	}
	return first
}

// Cleanup forgets fired records and custom reminders older than the
// retention window. Errors are logged; the remaining steps still run.
func (s *Scheduler) Cleanup(ctx context.Context) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	cutoff := s.now().Add(-s.retention)

	removed, err := s.ledger.Cleanup(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to clean fired reminders", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.clone()
	dropped := 0
	for id, c := range s.doc.Custom {
		if c.FireAt.Before(cutoff) {
			delete(s.doc.Custom, id)
			dropped++
		}
	}
	if dropped > 0 {
		if saveErr := s.save(ctx, prev); saveErr != nil {
			s.logger.Error("Failed to persist reminder cleanup", "error", saveErr)
			if err == nil {
				err = saveErr
			}
			dropped = 0
		}
	}

	s.logger.Info("Reminder cleanup finished", "fired_records", removed, "custom_reminders", dropped)
	return removed + dropped, err
}

// CreateCustomReminder schedules a one-off reminder
func (s *Scheduler) CreateCustomReminder(ctx context.Context, p NewCustomReminder) (CustomReminder, error) {
	message := strings.TrimSpace(p.Message)
	if message == "" {
		return CustomReminder{}, fmt.Errorf("%w: message is required", ErrInvalidReminder)
	}
	if p.FireAt.IsZero() {
		return CustomReminder{}, fmt.Errorf("%w: fire time is required", ErrInvalidReminder)
	}

	c := &CustomReminder{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(p.Title),
		Message:   message,
		FireAt:    p.FireAt,
		GuildID:   p.GuildID,
		ChannelID: p.ChannelID,
		Author:    p.Author,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.doc.clone()
	s.doc.Custom[c.ID] = c
	if err := s.save(ctx, prev); err != nil {
		return CustomReminder{}, err
	}

	s.logger.Info("Custom reminder created", "reminder", c.ID, "fire_at", c.FireAt)
	return c.clone(), nil
}

// DeleteCustomReminder removes a reminder. With a non-empty guildID only that
// guild's reminders can be removed.
func (s *Scheduler) DeleteCustomReminder(ctx context.Context, guildID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.doc.Custom[id]
	if !ok || (guildID != "" && c.GuildID != guildID) {
		return fmt.Errorf("reminder %s: %w", id, ErrReminderNotFound)
	}

	prev := s.doc.clone()
	delete(s.doc.Custom, id)
	if err := s.save(ctx, prev); err != nil {
		return err
	}

	s.logger.Info("Custom reminder deleted", "reminder", id)
	return nil
}

// ListCustomReminders returns pending reminders ordered by fire time. An
// empty guildID lists every guild.
func (s *Scheduler) ListCustomReminders(guildID string) []CustomReminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CustomReminder, 0)
	for _, c := range s.doc.Custom {
		if c.SentAt != nil {
			continue
		}
		if guildID != "" && c.GuildID != guildID {
			continue
		}
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// save persists doc, restoring prev on failure. Callers must hold mu.
func (s *Scheduler) save(ctx context.Context, prev settingsDocument) error {
	if err := storage.SetJSON(ctx, s.store, SettingsKey, &s.doc); err != nil {
		s.doc = prev
		return fmt.Errorf("save reminder settings: %w", err)
	}
	return nil
}

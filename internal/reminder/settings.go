package reminder

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// SettingsKey is the store key holding reminder settings and custom reminders
const SettingsKey = "reminder_settings"

// MaxOffsetMinutes bounds configurable offsets to one day
const MaxOffsetMinutes = 24 * 60

var (
	// ErrInvalidSettings indicates a rejected settings update.
	ErrInvalidSettings = errors.New("invalid reminder settings")
	// ErrInvalidReminder indicates invalid custom reminder input.
	ErrInvalidReminder = errors.New("invalid reminder")
	// ErrReminderNotFound indicates the custom reminder doesn't exist.
	ErrReminderNotFound = errors.New("reminder not found")
)

// Settings controls which session reminders fire and when
type Settings struct {
	Enabled map[Kind]bool  `json:"enabled"`
	Offsets map[Kind][]int `json:"offsets"`
}

// DefaultSettings returns every session kind enabled with the stock offsets
func DefaultSettings() Settings {
	return Settings{
		Enabled: map[Kind]bool{
			KindSessionStart:    true,
			KindSessionStarted:  true,
			KindCheckinDeadline: true,
			KindSessionEnd:      true,
			KindCheckout:        true,
		},
		Offsets: map[Kind][]int{
			KindSessionStart:    {30, 15, 5},
			KindSessionStarted:  {0},
			KindCheckinDeadline: {10, 5},
			KindSessionEnd:      {15, 5},
			KindCheckout:        {30},
		},
	}
}

// withDefaults fills kinds missing from s with their defaults.
func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	out := s.clone()
	if out.Enabled == nil {
		out.Enabled = make(map[Kind]bool)
	}
	if out.Offsets == nil {
		out.Offsets = make(map[Kind][]int)
	}
	for _, k := range SessionKinds {
		if _, ok := out.Enabled[k]; !ok {
			out.Enabled[k] = def.Enabled[k]
		}
		if _, ok := out.Offsets[k]; !ok || k.Direction() == Exact {
			out.Offsets[k] = def.Offsets[k]
		}
	}
	return out
}

func (s Settings) clone() Settings {
	out := Settings{
		Enabled: make(map[Kind]bool, len(s.Enabled)),
		Offsets: make(map[Kind][]int, len(s.Offsets)),
	}
	for k, v := range s.Enabled {
		out.Enabled[k] = v
	}
	for k, v := range s.Offsets {
		out.Offsets[k] = append([]int(nil), v...)
	}
	return out
}

// normalizeOffsets validates offsets and returns them deduplicated, largest first.
func normalizeOffsets(offsets []int) ([]int, error) {
	if len(offsets) == 0 {
		return nil, fmt.Errorf("%w: at least one offset is required", ErrInvalidSettings)
	}
	seen := make(map[int]bool, len(offsets))
	out := make([]int, 0, len(offsets))
	for _, o := range offsets {
		if o <= 0 || o > MaxOffsetMinutes {
			return nil, fmt.Errorf("%w: offset %d must be between 1 and %d minutes", ErrInvalidSettings, o, MaxOffsetMinutes)
		}
		if seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

// CustomReminder is a one-off reminder not tied to a session
type CustomReminder struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	FireAt    time.Time  `json:"fire_at"`
	GuildID   string     `json:"guild_id,omitempty"`
	ChannelID string     `json:"channel_id,omitempty"`
	Author    string     `json:"author,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// NewCustomReminder holds the parameters of CreateCustomReminder
type NewCustomReminder struct {
	Title     string
	Message   string
	FireAt    time.Time
	GuildID   string
	ChannelID string
	Author    string
}

func (c *CustomReminder) clone() CustomReminder {
	out := *c
	if c.SentAt != nil {
		t := *c.SentAt
		out.SentAt = &t
	}
	return out
}

type settingsDocument struct {
	Settings Settings                   `json:"settings"`
	Custom   map[string]*CustomReminder `json:"custom_reminders"`
}

func (d settingsDocument) clone() settingsDocument {
	out := settingsDocument{
		Settings: d.Settings.clone(),
		Custom:   make(map[string]*CustomReminder, len(d.Custom)),
	}
	for id, c := range d.Custom {
		cp := c.clone()
		out.Custom[id] = &cp
	}
	return out
}

package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/logging"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/notify"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

var refTime = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

func newGuildRegistry(t *testing.T) *checkin.Registry {
	t.Helper()

	now := refTime
	r := checkin.NewRegistry(storage.NewMemoryStore(),
		checkin.WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		}),
		checkin.WithLogger(logging.Discard()))

	for _, s := range []struct{ id, guild string }{
		{"a1", "guild-a"},
		{"a2", "guild-a"},
		{"b1", "guild-b"},
		{"global", ""},
	} {
		_, err := r.CreateSession(context.Background(), checkin.NewSession{
			ID:        s.id,
			Type:      checkin.SessionTypeScrim,
			StartTime: refTime.Add(time.Hour),
			EndTime:   refTime.Add(3 * time.Hour),
			GuildID:   s.guild,
		})
		require.NoError(t, err)
	}
	return r
}

func TestFindSession(t *testing.T) {
	r := newGuildRegistry(t)

	tests := []struct {
		name    string
		guildID string
		id      string
		found   bool
	}{
		{"own guild", "guild-a", "a1", true},
		{"other guild", "guild-b", "a1", false},
		{"unscoped session", "guild-b", "global", true},
		{"direct message", "", "a1", false},
		{"missing", "guild-a", "nope", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := findSession(r, tt.guildID, tt.id)
			if !tt.found {
				require.ErrorIs(t, err, checkin.ErrSessionNotFound)
				require.Equal(t, "Session not found. Use `/sessions` to see active sessions.", userMessage(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.id, s.ID)
		})
	}
}

func TestFindSession_OtherGuildCannotCancel(t *testing.T) {
	r := newGuildRegistry(t)

	_, err := findSession(r, "guild-b", "a1")
	require.ErrorIs(t, err, checkin.ErrSessionNotFound)

	s, ok := r.GetSession("a1")
	require.True(t, ok)
	require.Equal(t, checkin.StatusActive, s.Status)
}

func TestPlayerSessionsIn(t *testing.T) {
	r := newGuildRegistry(t)
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "b1", "global"} {
		_, err := r.CheckIn(ctx, id, "p1", "alpha")
		require.NoError(t, err)
	}

	ids := func(sessions []checkin.PlayerSession) []string {
		out := make([]string, len(sessions))
		for i, ps := range sessions {
			out[i] = ps.Session.ID
		}
		return out
	}

	require.Equal(t, []string{"global", "a2", "a1"}, ids(playerSessionsIn(r, "p1", "guild-a", 0)))
	require.Equal(t, []string{"global", "a2"}, ids(playerSessionsIn(r, "p1", "guild-a", 2)))
	require.Equal(t, []string{"global", "b1"}, ids(playerSessionsIn(r, "p1", "guild-b", 0)))
	require.Empty(t, playerSessionsIn(r, "p2", "guild-a", 0))
}

func TestFormatSchedule(t *testing.T) {
	reminders := []reminder.Reminder{
		{Kind: reminder.KindSessionStart, OffsetMinutes: 15, DueAt: time.Unix(1741982400, 0), Fired: true},
		{Kind: reminder.KindSessionStarted, DueAt: time.Unix(1741983300, 0)},
		{Kind: reminder.KindCheckout, OffsetMinutes: 30, DueAt: time.Unix(1741991400, 0)},
	}
	require.Equal(t, "Session start -15m <t:1741982400:R> (sent)\n"+
		"Start announcement at start <t:1741983300:R> (pending)\n"+
		"Check-out +30m <t:1741991400:R> (pending)\n", formatSchedule(reminders))
}

func TestSummaryEmbed(t *testing.T) {
	r := newGuildRegistry(t)
	_, err := r.CheckIn(context.Background(), "a1", "p1", "alpha")
	require.NoError(t, err)

	summary, ok := r.GetSessionSummary("a1")
	require.True(t, ok)

	embed := summaryEmbed(summary)
	require.Equal(t, notify.ColorInfo, embed.Color)
	require.Equal(t, "Scrim session `a1`", embed.Title)
	require.Equal(t, "alpha: checked in\n", embed.Fields[len(embed.Fields)-1].Value)
}

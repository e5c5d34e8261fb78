package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
)

func TestSessionReminderEmbed(t *testing.T) {
	sess := testSession("g1", "")

	tests := []struct {
		kind   reminder.Kind
		offset int
		title  string
		color  int
	}{
		{reminder.KindSessionStart, 30, "Scrim starts in 30 minutes", ColorInfo},
		{reminder.KindSessionStart, 5, "Scrim starts in 5 minutes", ColorUrgent},
		{reminder.KindSessionStarted, 0, "Scrim has started", ColorSuccess},
		{reminder.KindCheckinDeadline, 10, "Check-in for Scrim closes in 10 minutes", ColorWarning},
		{reminder.KindSessionEnd, 1, "Scrim ends in 1 minute", ColorUrgent},
		{reminder.KindCheckout, 30, "Scrim is over, remember to check out", ColorNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			r := reminder.Reminder{Kind: tt.kind, OffsetMinutes: tt.offset, DueAt: refTime}
			embed := SessionReminderEmbed(sess, r)
			require.Equal(t, tt.title, embed.Title)
			require.Equal(t, tt.color, embed.Color)
			require.Equal(t, "Session ID: S1", embed.Footer.Text)
			require.Equal(t, "2 / 5", embed.Fields[3].Value)
			require.Equal(t, refTime.Format(time.RFC3339), embed.Timestamp)
		})
	}
}

func TestSessionReminderEmbed_SlotsHint(t *testing.T) {
	sess := testSession("g1", "")
	embed := SessionReminderEmbed(sess, reminder.Reminder{Kind: reminder.KindSessionStart, OffsetMinutes: 15})
	last := embed.Fields[len(embed.Fields)-1]
	require.Equal(t, "Check in", last.Name)
	require.Contains(t, last.Value, "3 slots left")

	sess.MaxPlayers = nil
	embed = SessionReminderEmbed(sess, reminder.Reminder{Kind: reminder.KindSessionStart, OffsetMinutes: 15})
	require.Len(t, embed.Fields, 4)
	require.Equal(t, "2 checked in", embed.Fields[3].Value)
}

func TestSessionReminderEmbed_StartAnnouncement(t *testing.T) {
	sess := testSession("g1", "")
	r := reminder.Reminder{Kind: reminder.KindSessionStarted, DueAt: sess.StartTime}

	embed := SessionReminderEmbed(sess, r)
	last := embed.Fields[len(embed.Fields)-1]
	require.Equal(t, "Check in", last.Name)
	require.Equal(t, "3 slots left. Use `/checkin session_id:S1`", last.Value)

	sess.MaxPlayers = nil
	embed = SessionReminderEmbed(sess, r)
	require.Equal(t, "Use `/checkin session_id:S1`", embed.Fields[len(embed.Fields)-1].Value)
}

func TestEventEmbed(t *testing.T) {
	sess := testSession("g1", "")
	sess.CheckoutCount = 1

	tests := []struct {
		ev    checkin.Event
		title string
	}{
		{checkin.Event{Type: checkin.EventSessionCreated, Session: sess}, "New Scrim session"},
		{checkin.Event{Type: checkin.EventCheckedOut, Session: sess, Username: "bravo"}, "bravo checked out"},
		{checkin.Event{Type: checkin.EventNoShow, Session: sess, PlayerID: "42"}, "<@42> marked as no-show"},
		{checkin.Event{Type: checkin.EventSessionClosed, Session: sess}, "Scrim session closed"},
		{checkin.Event{Type: checkin.EventSessionCancelled, Session: sess}, "Scrim session cancelled"},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Type), func(t *testing.T) {
			embed := EventEmbed(tt.ev)
			require.NotNil(t, embed)
			require.Equal(t, tt.title, embed.Title)
		})
	}

	require.Nil(t, EventEmbed(checkin.Event{Type: checkin.EventType("unknown")}))
}

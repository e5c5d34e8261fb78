package bot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/notify"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

// newSessionID builds a short readable id such as "scrim-1a2b3c4d"
func newSessionID(t checkin.SessionType) string {
	return fmt.Sprintf("%s-%s", t, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// visibleIn reports whether a session belongs to guildID
func visibleIn(s checkin.Session, guildID string) bool {
	return s.GuildID == "" || s.GuildID == guildID
}

// findSession looks a session up for a command issued in guildID. Sessions of
// other guilds are reported as missing.
func findSession(r *checkin.Registry, guildID, id string) (checkin.Session, error) {
	session, ok := r.GetSession(id)
	if !ok || !visibleIn(session, guildID) {
		return checkin.Session{}, fmt.Errorf("session %s: %w", id, checkin.ErrSessionNotFound)
	}
	return session, nil
}

// handleSessionCreate handles the /session-create command
func (b *Bot) handleSessionCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)

	sessionType, err := checkin.ParseSessionType(stringOption(opts, "type"))
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	start, end, err := parseSessionWindow(stringOption(opts, "start"), stringOption(opts, "end"), b.config.Location)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	params := checkin.NewSession{
		ID:          stringOption(opts, "session_id"),
		Type:        sessionType,
		StartTime:   start,
		EndTime:     end,
		Description: stringOption(opts, "description"),
		GuildID:     i.GuildID,
	}
	if params.ID == "" {
		params.ID = newSessionID(sessionType)
	}
	if o, ok := opts["max_players"]; ok {
		n := int(o.IntValue())
		params.MaxPlayers = &n
	}
	if o, ok := opts["channel"]; ok {
		params.ChannelID = o.ChannelValue(s).ID
	}
	if u := interactionUser(i); u != nil {
		params.CreatedBy = u.ID
	}

	session, err := b.registry.CreateSession(ctx, params)
	if err != nil {
		slog.Warn("Failed to create session", "session", params.ID, "error", err)
		respondEphemeral(s, i, userMessage(err))
		return
	}

	respondWithEmbed(s, i, notify.EventEmbed(checkin.Event{
		Type:    checkin.EventSessionCreated,
		Session: session,
		At:      session.CreatedAt,
	}))
}

// handleSessionClose handles the /session-close command
func (b *Bot) handleSessionClose(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := stringOption(options(i), "session_id")
	if _, err := findSession(b.registry, i.GuildID, id); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	session, closed, err := b.registry.CloseSession(ctx, id)
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}
	if !closed {
		respondEphemeral(s, i, fmt.Sprintf("Session `%s` was not found or is not active.", id))
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Session `%s` closed with %d checked in and %d checked out.",
		id, session.CheckinCount, session.CheckoutCount))
}

// handleSessionCancel handles the /session-cancel command
func (b *Bot) handleSessionCancel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := stringOption(options(i), "session_id")
	if _, err := findSession(b.registry, i.GuildID, id); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	cancelled, err := b.registry.CancelSession(ctx, id)
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}
	if !cancelled {
		respondEphemeral(s, i, fmt.Sprintf("Session `%s` was not found or is not active.", id))
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Session `%s` cancelled. Its reminders will not be sent.", id))
}

// handleSessions handles the /sessions command
func (b *Bot) handleSessions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var sb strings.Builder
	count := 0
	for _, session := range b.registry.GetActiveSessions() {
		if !visibleIn(session, i.GuildID) {
			continue
		}
		count++
		sb.WriteString(fmt.Sprintf("%d. %s\n", count, formatSessionLine(session)))
	}

	if count == 0 {
		respondWithMessage(s, i, "No active sessions.\nUse `/session-create` to schedule one!")
		return
	}

	respondWithMessage(s, i, "**Active Sessions:**\n\n"+sb.String())
}

// handleSessionSummary handles the /session-summary command
func (b *Bot) handleSessionSummary(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := stringOption(options(i), "session_id")

	// Reminder lookups may hit Valkey
	b.deferResponse(s, i)

	session, err := findSession(b.registry, i.GuildID, id)
	if err != nil {
		b.editResponse(s, i, userMessage(err))
		return
	}
	summary, ok := b.registry.GetSessionSummary(id)
	if !ok {
		b.editResponse(s, i, userMessage(checkin.ErrSessionNotFound))
		return
	}

	embed := summaryEmbed(summary)

	reminders, err := b.scheduler.Schedule(ctx, session)
	if err != nil {
		slog.Warn("Failed to load reminder schedule", "session", id, "error", err)
	} else if len(reminders) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Reminders", Value: formatSchedule(reminders)})
	}

	b.editResponse(s, i, "", embed)
}

func formatSchedule(reminders []reminder.Reminder) string {
	var sb strings.Builder
	for _, r := range reminders {
		state := "pending"
		if r.Fired {
			state = "sent"
		}
		offset := fmt.Sprintf("-%dm", r.OffsetMinutes)
		switch r.Kind.Direction() {
		case reminder.After:
			offset = fmt.Sprintf("+%dm", r.OffsetMinutes)
		case reminder.Exact:
			offset = "at start"
		}
		sb.WriteString(fmt.Sprintf("%s %s <t:%d:R> (%s)\n", r.Kind.Label(), offset, r.DueAt.Unix(), state))
	}
	return sb.String()
}

func summaryEmbed(summary checkin.Summary) *discordgo.MessageEmbed {
	info := summary.SessionInfo

	ids := make([]string, 0, len(summary.Players))
	for id := range summary.Players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		pa, pb := summary.Players[ids[a]], summary.Players[ids[b]]
		if pa.Status != pb.Status {
			return pa.Status < pb.Status
		}
		return pa.Username < pb.Username
	})

	var players strings.Builder
	for _, id := range ids {
		p := summary.Players[id]
		name := p.Username
		if name == "" {
			name = fmt.Sprintf("<@%s>", id)
		}
		players.WriteString(fmt.Sprintf("%s: %s\n", name, strings.ReplaceAll(string(p.Status), "_", " ")))
	}
	if players.Len() == 0 {
		players.WriteString("No players yet")
	}

	limit := "unlimited"
	if info.MaxPlayers != nil {
		limit = fmt.Sprintf("%d", *info.MaxPlayers)
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s session `%s`", info.Type.Label(), info.ID),
		Description: info.Description,
		Color:       notify.ColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: string(info.Status), Inline: true},
			{Name: "Start", Value: fmt.Sprintf("<t:%d:F>", info.StartTime.Unix()), Inline: true},
			{Name: "End", Value: fmt.Sprintf("<t:%d:F>", info.EndTime.Unix()), Inline: true},
			{Name: "Limit", Value: limit, Inline: true},
			{Name: "Players", Value: fmt.Sprintf("%d", summary.Stats.TotalPlayers), Inline: true},
			{Name: "In / Out / No-show", Value: fmt.Sprintf("%d / %d / %d",
				summary.Stats.CheckedIn, summary.Stats.CheckedOut, summary.Stats.NoShows), Inline: true},
			{Name: "Roster", Value: players.String()},
		},
	}
}

// handleCheckIn handles the /checkin command
func (b *Bot) handleCheckIn(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := stringOption(options(i), "session_id")
	user := interactionUser(i)
	if user == nil {
		respondEphemeral(s, i, "Could not identify you.")
		return
	}
	if _, err := findSession(b.registry, i.GuildID, id); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	res, err := b.registry.CheckIn(ctx, id, user.ID, displayName(i))
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	msg := fmt.Sprintf("Checked in to `%s` (%s). You are #%d.", id, res.Session.Type.Label(), res.Position)
	if left := res.Session.SlotsLeft(); left >= 0 {
		msg += fmt.Sprintf(" %d slots left.", left)
	}
	respondEphemeral(s, i, msg)
}

// handleCheckOut handles the /checkout command
func (b *Bot) handleCheckOut(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := stringOption(options(i), "session_id")
	user := interactionUser(i)
	if user == nil {
		respondEphemeral(s, i, "Could not identify you.")
		return
	}
	if _, err := findSession(b.registry, i.GuildID, id); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	res, err := b.registry.CheckOut(ctx, id, user.ID)
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	respondEphemeral(s, i, fmt.Sprintf("Checked out of `%s` at <t:%d:t>.", id, res.CheckoutTime.Unix()))
}

// handleNoShow handles the /noshow command
func (b *Bot) handleNoShow(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)
	id := stringOption(opts, "session_id")
	player := opts["player"].UserValue(s)
	if _, err := findSession(b.registry, i.GuildID, id); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	if err := b.registry.MarkNoShow(ctx, id, player.ID); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("<@%s> marked as no-show in `%s`.", player.ID, id))
}

// handleMySessions handles the /my-sessions command
func (b *Bot) handleMySessions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		respondEphemeral(s, i, "Could not identify you.")
		return
	}

	limit := 0
	if o, ok := options(i)["limit"]; ok {
		limit = int(o.IntValue())
	}

	sessions := playerSessionsIn(b.registry, user.ID, i.GuildID, limit)
	if len(sessions) == 0 {
		respondEphemeral(s, i, "You have not joined any session yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Your Sessions:**\n\n")
	for idx, ps := range sessions {
		sb.WriteString(fmt.Sprintf("%d. %s - %s\n", idx+1, formatSessionLine(ps.Session),
			strings.ReplaceAll(string(ps.Player.Status), "_", " ")))
	}
	respondEphemeral(s, i, sb.String())
}

// playerSessionsIn returns a player's most recent sessions visible in guildID
func playerSessionsIn(r *checkin.Registry, playerID, guildID string, limit int) []checkin.PlayerSession {
	if limit <= 0 {
		limit = 10
	}
	out := make([]checkin.PlayerSession, 0, limit)
	for _, ps := range r.GetPlayerSessions(playerID, math.MaxInt) {
		if !visibleIn(ps.Session, guildID) {
			continue
		}
		out = append(out, ps)
		if len(out) == limit {
			break
		}
	}
	return out
}

// handleMyStats handles the /my-stats command
func (b *Bot) handleMyStats(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		respondEphemeral(s, i, "Could not identify you.")
		return
	}

	stats := b.registry.GetPlayerStats(user.ID)

	fields := []*discordgo.MessageEmbedField{
		{Name: "Check-ins", Value: fmt.Sprintf("%d", stats.TotalCheckins), Inline: true},
		{Name: "Check-outs", Value: fmt.Sprintf("%d", stats.TotalCheckouts), Inline: true},
		{Name: "No-shows", Value: fmt.Sprintf("%d", stats.NoShows), Inline: true},
	}
	for _, t := range checkin.SessionTypes {
		c, ok := stats.ByType[t]
		if !ok || (c.Checkins == 0 && c.Checkouts == 0) {
			continue
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   t.Label(),
			Value:  fmt.Sprintf("%d in / %d out", c.Checkins, c.Checkouts),
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:  "Check-in stats",
		Color:  notify.ColorSuccess,
		Author: &discordgo.MessageEmbedAuthor{Name: displayName(i)},
		Fields: fields,
	}
	if stats.LastActivity != nil {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Last activity"}
		embed.Timestamp = stats.LastActivity.Format(time.RFC3339)
	}
	respondWithEmbed(s, i, embed)
}

// handleSetChannel handles the /setchannel command
func (b *Bot) handleSetChannel(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	channel := options(i)["channel"].ChannelValue(s)

	settings := &storage.GuildSettings{
		GuildID:               i.GuildID,
		NotificationChannelID: channel.ID,
	}

	if err := storage.SaveGuildSettings(ctx, b.store, settings); err != nil {
		slog.Error("Failed to save guild settings", "error", err)
		respondWithMessage(s, i, "Failed to set notification channel. Please try again.")
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Session notifications will be sent to <#%s>", channel.ID))
}

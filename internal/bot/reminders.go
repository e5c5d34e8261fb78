package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
)

// handleReminderCreate handles the /reminder-create command
func (b *Bot) handleReminderCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)

	fireAt, err := parseDateTime(stringOption(opts, "time"), b.config.Location)
	if err != nil {
		respondEphemeral(s, i, err.Error())
		return
	}

	params := reminder.NewCustomReminder{
		Title:   stringOption(opts, "title"),
		Message: stringOption(opts, "message"),
		FireAt:  fireAt,
		GuildID: i.GuildID,
	}
	if o, ok := opts["channel"]; ok {
		params.ChannelID = o.ChannelValue(s).ID
	}
	if u := interactionUser(i); u != nil {
		params.Author = u.Username
	}

	c, err := b.scheduler.CreateCustomReminder(ctx, params)
	if err != nil {
		slog.Warn("Failed to create reminder", "error", err)
		respondEphemeral(s, i, userMessage(err))
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Reminder `%s` scheduled for <t:%d:F>.", c.ID, c.FireAt.Unix()))
}

// handleReminderList handles the /reminder-list command
func (b *Bot) handleReminderList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	reminders := b.scheduler.ListCustomReminders(i.GuildID)
	if len(reminders) == 0 {
		respondWithMessage(s, i, "No pending reminders.\nUse `/reminder-create` to add one!")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Pending Reminders:**\n\n")
	for idx, c := range reminders {
		title := c.Title
		if title == "" {
			title = c.Message
		}
		sb.WriteString(fmt.Sprintf("%d. <t:%d:f> **%s** (`%s`)\n", idx+1, c.FireAt.Unix(), title, c.ID))
	}
	respondWithMessage(s, i, sb.String())
}

// handleReminderDelete handles the /reminder-delete command
func (b *Bot) handleReminderDelete(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	id := stringOption(options(i), "reminder_id")

	if err := b.scheduler.DeleteCustomReminder(ctx, i.GuildID, id); err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	respondWithMessage(s, i, fmt.Sprintf("Reminder `%s` deleted.", id))
}

// handleReminderSettings handles the /reminder-settings command. Without a
// kind it shows the current settings.
func (b *Bot) handleReminderSettings(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := options(i)

	raw := stringOption(opts, "kind")
	if raw == "" {
		respondWithMessage(s, i, formatSettings(b.scheduler.Settings()))
		return
	}

	kind, err := reminder.ParseKind(raw)
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	var enabled *bool
	if o, ok := opts["enabled"]; ok {
		v := o.BoolValue()
		enabled = &v
	}

	var offsets []int
	if rawOffsets := stringOption(opts, "offsets"); rawOffsets != "" {
		if offsets, err = parseOffsets(rawOffsets); err != nil {
			respondEphemeral(s, i, err.Error())
			return
		}
	}

	settings, err := b.scheduler.UpdateSettings(ctx, kind, enabled, offsets)
	if err != nil {
		respondEphemeral(s, i, userMessage(err))
		return
	}

	respondWithMessage(s, i, formatSettings(settings))
}

func formatSettings(settings reminder.Settings) string {
	var sb strings.Builder
	sb.WriteString("**Reminder Settings:**\n\n")
	for _, k := range reminder.SessionKinds {
		state := "off"
		if settings.Enabled[k] {
			state = "on"
		}
		switch k.Direction() {
		case reminder.Exact:
			sb.WriteString(fmt.Sprintf("**%s** (%s): at start time\n", k.Label(), state))
		case reminder.After:
			sb.WriteString(fmt.Sprintf("**%s** (%s): %s minutes after\n", k.Label(), state, formatOffsets(settings.Offsets[k])))
		default:
			sb.WriteString(fmt.Sprintf("**%s** (%s): %s minutes before\n", k.Label(), state, formatOffsets(settings.Offsets[k])))
		}
	}
	return sb.String()
}

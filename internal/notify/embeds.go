package notify

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
)

// Embed colors shared by notifications and command replies
const (
	ColorInfo    = 0x3498DB
	ColorWarning = 0xF1C40F
	ColorUrgent  = 0xE67E22
	ColorSuccess = 0x2ECC71
	ColorDanger  = 0xE74C3C
	ColorNeutral = 0x95A5A6
	ColorCustom  = 0x9B59B6
)

// discordTime renders t with a Discord timestamp markup style (F, R, t...)
func discordTime(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

func minutesLabel(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}

func playersValue(s checkin.Session) string {
	if s.MaxPlayers == nil {
		return fmt.Sprintf("%d checked in", s.CheckinCount)
	}
	return fmt.Sprintf("%d / %d", s.CheckinCount, *s.MaxPlayers)
}

func sessionFields(s checkin.Session) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		{Name: "Type", Value: s.Type.Label(), Inline: true},
		{Name: "Start", Value: discordTime(s.StartTime, "F"), Inline: true},
		{Name: "End", Value: discordTime(s.EndTime, "t"), Inline: true},
		{Name: "Players", Value: playersValue(s), Inline: true},
	}
}

func sessionFooter(s checkin.Session) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Session ID: %s", s.ID)}
}

// SessionReminderEmbed formats a fired session reminder
func SessionReminderEmbed(s checkin.Session, r reminder.Reminder) *discordgo.MessageEmbed {
	label := s.Type.Label()
	embed := &discordgo.MessageEmbed{
		Description: s.Description,
		Fields:      sessionFields(s),
		Footer:      sessionFooter(s),
		Timestamp:   r.DueAt.Format(time.RFC3339),
	}

	switch r.Kind {
	case reminder.KindSessionStart:
		embed.Title = fmt.Sprintf("%s starts in %s", label, minutesLabel(r.OffsetMinutes))
		embed.Color = ColorInfo
		if r.OffsetMinutes <= 5 {
			embed.Color = ColorUrgent
		}
		if left := s.SlotsLeft(); left > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  "Check in",
				Value: fmt.Sprintf("%d slots left. Use `/checkin session_id:%s`", left, s.ID),
			})
		}
	case reminder.KindSessionStarted:
		embed.Title = fmt.Sprintf("%s has started", label)
		embed.Color = ColorSuccess
		hint := fmt.Sprintf("Use `/checkin session_id:%s`", s.ID)
		if s.MaxPlayers != nil {
			hint = fmt.Sprintf("%d slots left. %s", s.SlotsLeft(), hint)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Check in",
			Value: hint,
		})
	case reminder.KindCheckinDeadline:
		embed.Title = fmt.Sprintf("Check-in for %s closes in %s", label, minutesLabel(r.OffsetMinutes))
		embed.Color = ColorWarning
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Deadline",
			Value: discordTime(r.Anchor, "R"),
		})
	case reminder.KindSessionEnd:
		embed.Title = fmt.Sprintf("%s ends in %s", label, minutesLabel(r.OffsetMinutes))
		embed.Color = ColorUrgent
	case reminder.KindCheckout:
		embed.Title = fmt.Sprintf("%s is over, remember to check out", label)
		embed.Color = ColorNeutral
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Check out",
			Value: fmt.Sprintf("Use `/checkout session_id:%s`", s.ID),
		})
	default:
		embed.Title = fmt.Sprintf("%s reminder", label)
		embed.Color = ColorInfo
	}
	return embed
}

// CustomReminderEmbed formats a custom reminder
func CustomReminderEmbed(c reminder.CustomReminder) *discordgo.MessageEmbed {
	title := c.Title
	if title == "" {
		title = "Reminder"
	}
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: c.Message,
		Color:       ColorCustom,
		Timestamp:   c.FireAt.Format(time.RFC3339),
	}
	if c.Author != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Scheduled by %s", c.Author)}
	}
	return embed
}

// EventEmbed formats a registry event, or returns nil for events that are
// not announced.
func EventEmbed(ev checkin.Event) *discordgo.MessageEmbed {
	s := ev.Session
	label := s.Type.Label()
	embed := &discordgo.MessageEmbed{
		Footer:    sessionFooter(s),
		Timestamp: ev.At.Format(time.RFC3339),
	}

	switch ev.Type {
	case checkin.EventSessionCreated:
		embed.Title = fmt.Sprintf("New %s session", label)
		embed.Description = s.Description
		embed.Color = ColorInfo
		embed.Fields = sessionFields(s)
	case checkin.EventCheckedIn:
		embed.Title = fmt.Sprintf("%s checked in", ev.Username)
		embed.Description = fmt.Sprintf("Position #%d in %s", ev.Position, label)
		embed.Color = ColorSuccess
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Players", Value: playersValue(s), Inline: true},
		}
	case checkin.EventCheckedOut:
		embed.Title = fmt.Sprintf("%s checked out", ev.Username)
		embed.Description = fmt.Sprintf("Left %s", label)
		embed.Color = ColorNeutral
	case checkin.EventNoShow:
		name := ev.Username
		if name == "" {
			name = fmt.Sprintf("<@%s>", ev.PlayerID)
		}
		embed.Title = fmt.Sprintf("%s marked as no-show", name)
		embed.Description = label
		embed.Color = ColorDanger
	case checkin.EventSessionClosed:
		embed.Title = fmt.Sprintf("%s session closed", label)
		embed.Color = ColorNeutral
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Checked in", Value: fmt.Sprintf("%d", s.CheckinCount), Inline: true},
			{Name: "Checked out", Value: fmt.Sprintf("%d", s.CheckoutCount), Inline: true},
		}
	case checkin.EventSessionCancelled:
		embed.Title = fmt.Sprintf("%s session cancelled", label)
		embed.Description = fmt.Sprintf("The session scheduled for %s will not happen.", discordTime(s.StartTime, "F"))
		embed.Color = ColorDanger
	default:
		return nil
	}
	return embed
}

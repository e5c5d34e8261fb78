package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
)

// dateLayout is the format users type dates in
const dateLayout = "2006-01-02 15:04"

var dateLayouts = []string{dateLayout, "02/01/2006 15:04", "2006-01-02T15:04"}

// parseDateTime reads a human entered date in loc
func parseDateTime(input string, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, use YYYY-MM-DD HH:MM", input)
}

// parseSessionWindow validates a start/end pair
func parseSessionWindow(start, end string, loc *time.Location) (time.Time, time.Time, error) {
	s, err := parseDateTime(start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := parseDateTime(end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !e.After(s) {
		return time.Time{}, time.Time{}, errors.New("end time must be after start time")
	}
	return s, e, nil
}

// parseOffsets reads a comma separated list of minutes
func parseOffsets(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q", p)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("no offsets given")
	}
	return out, nil
}

func formatOffsets(offsets []int) string {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = strconv.Itoa(o)
	}
	return strings.Join(parts, ", ")
}

// userMessage turns a domain error into a reply. Unknown errors get a
// generic message; details go to the log.
func userMessage(err error) string {
	switch {
	case errors.Is(err, checkin.ErrSessionNotFound):
		return "Session not found. Use `/sessions` to see active sessions."
	case errors.Is(err, checkin.ErrSessionNotActive):
		return "This session is no longer active."
	case errors.Is(err, checkin.ErrSessionFull):
		return "This session is full."
	case errors.Is(err, checkin.ErrAlreadyCheckedIn):
		return "You are already checked in to this session."
	case errors.Is(err, checkin.ErrPlayerNotCheckedIn):
		return "You have not checked in to this session."
	case errors.Is(err, checkin.ErrAlreadyCheckedOut):
		return "You already checked out of this session."
	case errors.Is(err, checkin.ErrDuplicateSession):
		return "A session with this id already exists."
	case errors.Is(err, checkin.ErrInvalidSession),
		errors.Is(err, reminder.ErrInvalidSettings),
		errors.Is(err, reminder.ErrInvalidReminder):
		return fmt.Sprintf("Invalid input: %s", err.Error())
	case errors.Is(err, reminder.ErrReminderNotFound):
		return "Reminder not found. Use `/reminder-list` to see pending reminders."
	case checkin.Kind(err) == checkin.KindPersistence:
		return "Could not save your change. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

func formatPlayers(s checkin.Session) string {
	if s.MaxPlayers == nil {
		return fmt.Sprintf("%d", s.CheckinCount)
	}
	return fmt.Sprintf("%d/%d", s.CheckinCount, *s.MaxPlayers)
}

func formatSessionLine(s checkin.Session) string {
	line := fmt.Sprintf("`%s` **%s** <t:%d:f> - <t:%d:t> (%s players)",
		s.ID, s.Type.Label(), s.StartTime.Unix(), s.EndTime.Unix(), formatPlayers(s))
	if s.Description != "" {
		line += " " + s.Description
	}
	return line
}

// options indexes command options by name
func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		out[o.Name] = o
	}
	return out
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return strings.TrimSpace(o.StringValue())
	}
	return ""
}

// interactionUser returns the invoking user in guilds and DMs
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	if u := interactionUser(i); u != nil {
		if u.GlobalName != "" {
			return u.GlobalName
		}
		return u.Username
	}
	return ""
}

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, &discordgo.InteractionResponseData{Content: content})
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	respond(s, i, &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral})
}

func respondWithEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	respond(s, i, &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}})
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "command", i.ApplicationCommandData().Name, "error", err)
	}
}

func (b *Bot) deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Error("Failed to defer interaction", "command", i.ApplicationCommandData().Name, "error", err)
	}
}

func (b *Bot) editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) {
	edit := &discordgo.WebhookEdit{Content: &content}
	if len(embeds) > 0 {
		edit.Embeds = &embeds
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		slog.Error("Failed to edit interaction response", "command", i.ApplicationCommandData().Name, "error", err)
	}
}

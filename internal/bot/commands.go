package bot

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
)

const (
	cmdSessionCreate    = "session-create"
	cmdSessionClose     = "session-close"
	cmdSessionCancel    = "session-cancel"
	cmdSessions         = "sessions"
	cmdSessionSummary   = "session-summary"
	cmdCheckIn          = "checkin"
	cmdCheckOut         = "checkout"
	cmdNoShow           = "noshow"
	cmdMySessions       = "my-sessions"
	cmdMyStats          = "my-stats"
	cmdReminderCreate   = "reminder-create"
	cmdReminderList     = "reminder-list"
	cmdReminderDelete   = "reminder-delete"
	cmdReminderSettings = "reminder-settings"
	cmdSetChannel       = "setchannel"
)

// adminPermissions is required for commands that manage sessions and reminders
var adminPermissions int64 = discordgo.PermissionManageEvents

// buildSessionTypeChoices creates the session type selection choices
func buildSessionTypeChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(checkin.SessionTypes))
	for i, t := range checkin.SessionTypes {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{
			Name:  t.Label(),
			Value: string(t),
		}
	}
	return choices
}

// buildReminderKindChoices creates the session reminder kind choices
func buildReminderKindChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(reminder.SessionKinds))
	for i, k := range reminder.SessionKinds {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{
			Name:  k.Label(),
			Value: string(k),
		}
	}
	return choices
}

func sessionIDOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "session_id",
		Description: description,
		Required:    true,
	}
}

// Slash command definitions
func getCommandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     cmdSessionCreate,
			Description:              "Schedule a new check-in session",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "Kind of session",
					Required:    true,
					Choices:     buildSessionTypeChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "start",
					Description: "Start time (YYYY-MM-DD HH:MM)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "end",
					Description: "End time (YYYY-MM-DD HH:MM)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "max_players",
					Description: "Player limit (leave empty for no limit)",
					MinValue:    floatPtr(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "Notes shown in announcements",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel for this session's announcements",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "session_id",
					Description: "Custom session id (generated when empty)",
				},
			},
		},
		{
			Name:                     cmdSessionClose,
			Description:              "Close an active session",
			DefaultMemberPermissions: &adminPermissions,
			Options:                  []*discordgo.ApplicationCommandOption{sessionIDOption("Session to close")},
		},
		{
			Name:                     cmdSessionCancel,
			Description:              "Cancel an active session",
			DefaultMemberPermissions: &adminPermissions,
			Options:                  []*discordgo.ApplicationCommandOption{sessionIDOption("Session to cancel")},
		},
		{
			Name:        cmdSessions,
			Description: "List active sessions in this server",
		},
		{
			Name:        cmdSessionSummary,
			Description: "Show players and reminders of a session",
			Options:     []*discordgo.ApplicationCommandOption{sessionIDOption("Session to summarize")},
		},
		{
			Name:        cmdCheckIn,
			Description: "Check in to a session",
			Options:     []*discordgo.ApplicationCommandOption{sessionIDOption("Session to join")},
		},
		{
			Name:        cmdCheckOut,
			Description: "Check out of a session",
			Options:     []*discordgo.ApplicationCommandOption{sessionIDOption("Session to leave")},
		},
		{
			Name:                     cmdNoShow,
			Description:              "Mark a player as no-show",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				sessionIDOption("Session the player missed"),
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Player who did not show up",
					Required:    true,
				},
			},
		},
		{
			Name:        cmdMySessions,
			Description: "Show your recent sessions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "How many sessions to show (default 10)",
					MinValue:    floatPtr(1),
					MaxValue:    25,
				},
			},
		},
		{
			Name:        cmdMyStats,
			Description: "Show your check-in statistics",
		},
		{
			Name:                     cmdReminderCreate,
			Description:              "Schedule a custom reminder",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "time",
					Description: "When to send it (YYYY-MM-DD HH:MM)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Reminder text",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Reminder title",
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to send it to",
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
		{
			Name:        cmdReminderList,
			Description: "List pending custom reminders",
		},
		{
			Name:                     cmdReminderDelete,
			Description:              "Delete a custom reminder",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reminder_id",
					Description: "Reminder to delete",
					Required:    true,
				},
			},
		},
		{
			Name:                     cmdReminderSettings,
			Description:              "Show or change session reminder settings",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "kind",
					Description: "Reminder kind to change",
					Choices:     buildReminderKindChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "enabled",
					Description: "Turn this reminder kind on or off",
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "offsets",
					Description: "Minutes, comma separated (e.g. 30,15,5)",
				},
			},
		},
		{
			Name:                     cmdSetChannel,
			Description:              "Set the channel for session notifications",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "The channel to send notifications to",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

func (b *Bot) applicationID() string {
	if b.config.DiscordApplicationID != "" {
		return b.config.DiscordApplicationID
	}
	return b.session.State.User.ID
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands", "guild", b.config.DiscordGuildID)

	commandDefinitions := getCommandDefinitions()
	registeredCommands := make([]*discordgo.ApplicationCommand, 0, len(commandDefinitions))

	for _, cmd := range commandDefinitions {
		registered, err := b.session.ApplicationCommandCreate(
			b.applicationID(),
			b.config.DiscordGuildID, // Empty string = global command
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		registeredCommands = append(registeredCommands, registered)
		slog.Debug("Registered command", "name", cmd.Name)
	}

	b.commands = registeredCommands
	slog.Info("Slash commands registered", "count", len(registeredCommands))
	return nil
}

// removeCommands removes all registered slash commands
func (b *Bot) removeCommands() {
	for _, cmd := range b.commands {
		err := b.session.ApplicationCommandDelete(b.applicationID(), b.config.DiscordGuildID, cmd.ID)
		if err != nil {
			slog.Error("Failed to remove command", "name", cmd.Name, "error", err)
		}
	}
}

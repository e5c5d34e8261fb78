package notify

import (
	"context"
	"sort"

	"github.com/bwmarrin/discordgo"
)

// Channel is a text channel a notification can be delivered to
type Channel struct {
	ID   string
	Name string
}

// Messenger is the outbound side of the chat platform
type Messenger interface {
	// GuildIDs lists the guilds the bot is a member of
	GuildIDs() []string
	// GuildChannels lists a guild's text channels in display order
	GuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// DiscordMessenger implements Messenger on a discordgo session
type DiscordMessenger struct {
	session *discordgo.Session
}

// NewDiscordMessenger wraps an open discordgo session
func NewDiscordMessenger(session *discordgo.Session) *DiscordMessenger {
	return &DiscordMessenger{session: session}
}

func (m *DiscordMessenger) GuildIDs() []string {
	state := m.session.State
	state.RLock()
	defer state.RUnlock()

	ids := make([]string, 0, len(state.Guilds))
	for _, g := range state.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

func (m *DiscordMessenger) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	channels, err := m.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	sort.SliceStable(channels, func(i, j int) bool {
		return channels[i].Position < channels[j].Position
	})

	out := make([]Channel, 0, len(channels))
	for _, c := range channels {
		if c.Type != discordgo.ChannelTypeGuildText && c.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		out = append(out, Channel{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

func (m *DiscordMessenger) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := m.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

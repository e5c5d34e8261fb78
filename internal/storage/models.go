package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

// GuildSettings stores per-server configuration
type GuildSettings struct {
	GuildID               string    `json:"guild_id"`
	NotificationChannelID string    `json:"notification_channel_id"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func guildSettingsKey(guildID string) string {
	return "guild_settings:" + strings.TrimSpace(guildID)
}

// LoadGuildSettings returns the settings for a guild, or ErrNotFound.
func LoadGuildSettings(ctx context.Context, s Store, guildID string) (*GuildSettings, error) {
	settings := &GuildSettings{}
	ok, err := GetJSON(ctx, s, guildSettingsKey(guildID), settings)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return settings, nil
}

// SaveGuildSettings creates or updates guild settings
func SaveGuildSettings(ctx context.Context, s Store, settings *GuildSettings) error {
	if strings.TrimSpace(settings.GuildID) == "" {
		return errors.New("guild id is required")
	}
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now()
	}
	return SetJSON(ctx, s, guildSettingsKey(settings.GuildID), settings)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/notify"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendSQLite, cfg.StoreBackend)
	require.Equal(t, "./data/bot.db", cfg.DatabasePath)
	require.Equal(t, time.Minute, cfg.ReminderTick())
	require.Equal(t, 24*time.Hour, cfg.ReminderCleanup())
	require.Equal(t, 7*24*time.Hour, cfg.ReminderRetention())
	require.Equal(t, 8*time.Second, cfg.DispatchTimeout())
	require.Equal(t, notify.DefaultChannelKeywords, cfg.NotifyChannelKeywords)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.LogCompress)
	require.NotNil(t, cfg.Location)
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")

	_, err := Load()
	require.ErrorContains(t, err, "DISCORD_BOT_TOKEN")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("STORE_BACKEND", "POSTGRES")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/hawk")
	t.Setenv("REMINDER_TICK_SECONDS", "30")
	t.Setenv("NOTIFY_CHANNEL_KEYWORDS", " Alerts, ,scrims ")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.StoreBackend)
	require.Equal(t, "postgresql://u:p@db:5432/hawk", cfg.DatabaseURL)
	require.Equal(t, 30*time.Second, cfg.ReminderTick())
	require.Equal(t, []string{"alerts", "scrims"}, cfg.NotifyChannelKeywords)
	require.Equal(t, time.UTC, cfg.Location)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE_BACKEND": "postgres"},
		"unknown backend":      {"STORE_BACKEND": "mongo"},
		"non numeric tick":     {"REMINDER_TICK_SECONDS": "soon"},
		"zero retention":       {"REMINDER_RETENTION_DAYS": "0"},
		"bad timezone":         {"TIMEZONE": "Mars/Olympus"},
		"bad compress flag":    {"LOG_COMPRESS": "maybe"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DISCORD_BOT_TOKEN", "token")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // embedded zone database

	"github.com/joho/godotenv"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/notify"
)

// Store backends accepted in STORE_BACKEND
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken         string
	DiscordApplicationID string
	DiscordGuildID       string

	// Storage
	StoreBackend string
	DatabasePath string
	DatabaseURL  string

	// Valkey (optional fired-reminder ledger)
	ValkeyAddr     string
	ValkeyPassword string

	// Reminders
	ReminderTickSeconds   int
	ReminderCleanupHours  int
	ReminderRetentionDays int

	// Dispatch
	DispatchTimeoutSeconds int
	DispatchRatePerSecond  int
	NotifyChannelKeywords  []string

	// Human date input
	Location *time.Location

	// Logging
	LogLevel      string
	LogDir        string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:         os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordApplicationID: os.Getenv("DISCORD_APPLICATION_ID"),
		DiscordGuildID:       os.Getenv("DISCORD_GUILD_ID"),
		StoreBackend:         strings.ToLower(getEnvOrDefault("STORE_BACKEND", BackendSQLite)),
		DatabasePath:         getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		DatabaseURL:          normalizeDatabaseURL(os.Getenv("DATABASE_URL")),
		ValkeyAddr:           os.Getenv("VALKEY_ADDR"),
		ValkeyPassword:       os.Getenv("VALKEY_PASSWORD"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir:               os.Getenv("LOG_DIR"),
	}
	cfg.NotifyChannelKeywords = splitList(getEnvOrDefault("NOTIFY_CHANNEL_KEYWORDS", strings.Join(notify.DefaultChannelKeywords, ",")))

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"REMINDER_TICK_SECONDS", 60, &cfg.ReminderTickSeconds},
		{"REMINDER_CLEANUP_HOURS", 24, &cfg.ReminderCleanupHours},
		{"REMINDER_RETENTION_DAYS", 7, &cfg.ReminderRetentionDays},
		{"DISPATCH_TIMEOUT_SECONDS", 8, &cfg.DispatchTimeoutSeconds},
		{"DISPATCH_RATE_PER_SECOND", 5, &cfg.DispatchRatePerSecond},
		{"LOG_MAX_SIZE_MB", 50, &cfg.LogMaxSizeMB},
		{"LOG_MAX_BACKUPS", 5, &cfg.LogMaxBackups},
		{"LOG_MAX_AGE_DAYS", 14, &cfg.LogMaxAgeDays},
	}
	for _, v := range ints {
		n, err := getEnvInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", v.key, n)
		}
		*v.dst = n
	}

	compress, err := strconv.ParseBool(getEnvOrDefault("LOG_COMPRESS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_COMPRESS: %w", err)
	}
	cfg.LogCompress = compress

	loc, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	switch cfg.StoreBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND: %s", cfg.StoreBackend)
	}

	return cfg, nil
}

// ReminderTick is the interval between reminder evaluations
func (c *Config) ReminderTick() time.Duration {
	return time.Duration(c.ReminderTickSeconds) * time.Second
}

// ReminderCleanup is the interval between cleanup runs
func (c *Config) ReminderCleanup() time.Duration {
	return time.Duration(c.ReminderCleanupHours) * time.Hour
}

// ReminderRetention is how long fired reminders are remembered
func (c *Config) ReminderRetention() time.Duration {
	return time.Duration(c.ReminderRetentionDays) * 24 * time.Hour
}

// DispatchTimeout bounds a single delivery attempt
func (c *Config) DispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeoutSeconds) * time.Second
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeDatabaseURL rewrites the postgres:// scheme some hosts hand out
// into postgresql://, which every driver accepts.
func normalizeDatabaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(raw, "postgres://")
	}
	return raw
}

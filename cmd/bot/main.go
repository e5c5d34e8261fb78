package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/bot"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/cache"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/config"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/logging"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage/postgres"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logging
	logger, err := logging.Setup(cfg.LogLevel, logging.FileConfig{
		Dir:        cfg.LogDir,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	}, "hawk-bot.log")
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}

	logger.Info("Starting Hawk Esports check-in bot", "store", cfg.StoreBackend)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open store", "error", err)
		os.Exit(1)
	}

	ledger, valkeyClient, err := newLedger(ctx, cfg, store, logger)
	if err != nil {
		logger.Error("Failed to create reminder ledger", "error", err)
		os.Exit(1)
	}
	if valkeyClient != nil {
		defer valkeyClient.Close()
	}

	// Create and start the bot
	b, err := bot.New(cfg, store, ledger)
	if err != nil {
		logger.Error("Failed to create bot", "error", err)
		os.Exit(1)
	}

	// Start the bot
	if err := b.Start(ctx); err != nil {
		logger.Error("Failed to start bot", "error", err)
		os.Exit(1)
	}

	logger.Info("Bot is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()

	// Stop the bot gracefully
	if err := b.Stop(); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Bot stopped")
}

// openStore opens the document store selected by STORE_BACKEND
func openStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		return postgres.Open(cfg.DatabaseURL, logger.With("component", "store"))
	case config.BackendMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	default:
		return sqlite.Open(cfg.DatabasePath)
	}
}

// newLedger uses Valkey when configured and otherwise a ledger persisted in
// the document store. The returned client is nil without Valkey.
func newLedger(ctx context.Context, cfg *config.Config, store storage.Store, logger *slog.Logger) (reminder.Ledger, valkey.Client, error) {
	if cfg.ValkeyAddr == "" {
		ledger := reminder.NewMemoryLedger(store, logger.With("component", "reminder"))
		if err := ledger.Load(ctx); err != nil {
			return nil, nil, err
		}
		return ledger, nil, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := cache.NewClient(dialCtx, cache.Config{
		Addr:        cfg.ValkeyAddr,
		Password:    cfg.ValkeyPassword,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect valkey: %w", err)
	}

	logger.Info("Using Valkey reminder ledger", "addr", cfg.ValkeyAddr)
	return reminder.NewValkeyLedger(client, reminder.DefaultValkeyPrefix, cfg.ReminderRetention()), client, nil
}

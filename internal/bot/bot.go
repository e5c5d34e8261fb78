// Package bot wires the check-in registry, the reminder scheduler and the
// notification dispatcher to a Discord session and its slash commands.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/config"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/notify"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/poller"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

// commandTimeout bounds the work done for one interaction
const commandTimeout = 10 * time.Second

// Bot represents the Discord bot instance
type Bot struct {
	config     *config.Config
	session    *discordgo.Session
	store      storage.Store
	registry   *checkin.Registry
	scheduler  *reminder.Scheduler
	dispatcher *notify.Dispatcher
	poller     *poller.Poller
	commands   []*discordgo.ApplicationCommand
}

// New creates a new Bot instance on top of an opened store. ledger records
// fired reminders.
func New(cfg *config.Config, store storage.Store, ledger reminder.Ledger) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds

	logger := slog.Default()

	dispatcher := notify.NewDispatcher(notify.NewDiscordMessenger(session), store, notify.Options{
		Timeout:       cfg.DispatchTimeout(),
		RatePerSecond: float64(cfg.DispatchRatePerSecond),
		Keywords:      cfg.NotifyChannelKeywords,
		Logger:        logger.With("component", "notify"),
	})

	registry := checkin.NewRegistry(store, checkin.WithLogger(logger.With("component", "checkin")))
	registry.Subscribe(dispatcher)

	scheduler := reminder.NewScheduler(registry, dispatcher, ledger, store,
		reminder.WithLogger(logger.With("component", "reminder")),
		reminder.WithRetention(cfg.ReminderRetention()),
	)

	b := &Bot{
		config:     cfg,
		session:    session,
		store:      store,
		registry:   registry,
		scheduler:  scheduler,
		dispatcher: dispatcher,
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Start loads persisted state, opens the Discord connection and starts
// background jobs
func (b *Bot) Start(ctx context.Context) error {
	if err := b.registry.Load(ctx); err != nil {
		return err
	}
	if err := b.scheduler.Load(ctx); err != nil {
		return err
	}

	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	p, err := poller.New(slog.Default().With("component", "poller"),
		poller.Job{
			Name:     "reminder-tick",
			Interval: b.config.ReminderTick(),
			Run: func(ctx context.Context) error {
				_, err := b.scheduler.Tick(ctx)
				return err
			},
		},
		poller.Job{
			Name:     "reminder-cleanup",
			Interval: b.config.ReminderCleanup(),
			Run: func(ctx context.Context) error {
				_, err := b.scheduler.Cleanup(ctx)
				return err
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	b.poller = p
	b.poller.Start(ctx)

	return nil
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop background jobs
	if b.poller != nil {
		b.poller.Stop()
	}

	// Let pending announcements finish
	b.dispatcher.Wait()

	// Guild scoped commands are only used while developing; drop them
	if b.config.DiscordGuildID != "" {
		b.removeCommands()
	}

	// Close storage
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch data.Name {
	case cmdSessionCreate:
		b.handleSessionCreate(ctx, s, i)
	case cmdSessionClose:
		b.handleSessionClose(ctx, s, i)
	case cmdSessionCancel:
		b.handleSessionCancel(ctx, s, i)
	case cmdSessions:
		b.handleSessions(s, i)
	case cmdSessionSummary:
		b.handleSessionSummary(ctx, s, i)
	case cmdCheckIn:
		b.handleCheckIn(ctx, s, i)
	case cmdCheckOut:
		b.handleCheckOut(ctx, s, i)
	case cmdNoShow:
		b.handleNoShow(ctx, s, i)
	case cmdMySessions:
		b.handleMySessions(s, i)
	case cmdMyStats:
		b.handleMyStats(s, i)
	case cmdReminderCreate:
		b.handleReminderCreate(ctx, s, i)
	case cmdReminderList:
		b.handleReminderList(s, i)
	case cmdReminderDelete:
		b.handleReminderDelete(ctx, s, i)
	case cmdReminderSettings:
		b.handleReminderSettings(ctx, s, i)
	case cmdSetChannel:
		b.handleSetChannel(ctx, s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}

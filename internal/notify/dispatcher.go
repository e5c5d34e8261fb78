// Package notify turns reminders and check-in events into Discord embeds and
// delivers them on a best-effort basis.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/checkin"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/reminder"
	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

var (
	// ErrNoChannel indicates no target channel could be resolved for a guild.
	ErrNoChannel = errors.New("no notification channel")
	// ErrNotDelivered indicates a notification reached no channel at all.
	ErrNotDelivered = errors.New("notification not delivered")
)

// Options tunes a Dispatcher. Zero values fall back to defaults.
type Options struct {
	Timeout        time.Duration
	RatePerSecond  float64
	Keywords       []string
	MaxConcurrency int
	Logger         *slog.Logger
}

// DefaultChannelKeywords are matched against channel names when a guild has
// no configured channel
var DefaultChannelKeywords = []string{"notif", "avisos", "announcements", "geral", "general", "check-in"}

const (
	defaultTimeout        = 8 * time.Second
	defaultMaxConcurrency = 4
)

// Target selects where a notification goes. An explicit ChannelID wins;
// otherwise the channel is resolved in GuildID, or in every guild when
// GuildID is empty.
type Target struct {
	GuildID   string
	ChannelID string
}

// Failure is one channel or guild a notification could not reach
type Failure struct {
	GuildID   string
	ChannelID string
	Err       error
}

// Report summarizes one delivery
type Report struct {
	Delivered []string
	Failed    []Failure
}

// Err returns nil when at least one channel received the notification
func (r Report) Err() error {
	if len(r.Delivered) > 0 {
		return nil
	}
	if len(r.Failed) == 0 {
		return ErrNotDelivered
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return fmt.Errorf("%w: %w", ErrNotDelivered, errors.Join(errs...))
}

// Dispatcher delivers embeds through a Messenger
type Dispatcher struct {
	messenger      Messenger
	store          storage.Store
	logger         *slog.Logger
	limiter        *rate.Limiter
	timeout        time.Duration
	keywords       []string
	maxConcurrency int

	// pending tracks asynchronous event announcements.
	pending sync.WaitGroup
}

// NewDispatcher creates a dispatcher. store holds guild settings and may be nil.
func NewDispatcher(messenger Messenger, store storage.Store, opts Options) *Dispatcher {
	d := &Dispatcher{
		messenger:      messenger,
		store:          store,
		logger:         opts.Logger,
		timeout:        opts.Timeout,
		keywords:       normalizeKeywords(opts.Keywords),
		maxConcurrency: opts.MaxConcurrency,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	if len(d.keywords) == 0 {
		d.keywords = normalizeKeywords(DefaultChannelKeywords)
	}
	if d.maxConcurrency <= 0 {
		d.maxConcurrency = defaultMaxConcurrency
	}

	d.limiter = rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return d
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Deliver sends embed to the channels selected by target. Failures are
// logged per channel and collected in the report.
func (d *Dispatcher) Deliver(ctx context.Context, target Target, embed *discordgo.MessageEmbed) Report {
	if target.ChannelID != "" {
		var report Report
		d.deliverOne(ctx, target.GuildID, target.ChannelID, embed, &report)
		return report
	}

	guilds := []string{target.GuildID}
	if target.GuildID == "" {
		guilds = d.messenger.GuildIDs()
	}

	var (
		mu     sync.Mutex
		report Report
	)
	p := pool.New().WithMaxGoroutines(d.maxConcurrency)
	for _, guildID := range guilds {
		p.Go(func() {
			var local Report
			channelID, err := d.ResolveChannel(ctx, guildID)
			if err != nil {
				d.logger.Warn("No channel to notify", "guild", guildID, "title", embed.Title, "error", err)
				local.Failed = append(local.Failed, Failure{GuildID: guildID, Err: err})
			} else {
				d.deliverOne(ctx, guildID, channelID, embed, &local)
			}

			mu.Lock()
			report.Delivered = append(report.Delivered, local.Delivered...)
			report.Failed = append(report.Failed, local.Failed...)
			mu.Unlock()
		})
	}
	p.Wait()

	return report
}

func (d *Dispatcher) deliverOne(ctx context.Context, guildID, channelID string, embed *discordgo.MessageEmbed, report *Report) {
	err := d.send(ctx, channelID, embed)
	if err != nil {
		d.logger.Warn("Failed to send notification", "guild", guildID, "channel", channelID, "title", embed.Title, "error", err)
		report.Failed = append(report.Failed, Failure{GuildID: guildID, ChannelID: channelID, Err: err})
		return
	}
	d.logger.Debug("Sent notification", "guild", guildID, "channel", channelID, "title", embed.Title)
	report.Delivered = append(report.Delivered, channelID)
}

// send makes one bounded attempt; there are no retries.
func (d *Dispatcher) send(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.messenger.SendEmbed(attemptCtx, channelID, embed)
	}()

	select {
	case err := <-errCh:
		return err
	case <-attemptCtx.Done():
		return fmt.Errorf("send to %s: %w", channelID, attemptCtx.Err())
	}
}

// ResolveChannel picks the notification channel of a guild: the configured
// one when set, otherwise the first channel whose name matches a keyword.
func (d *Dispatcher) ResolveChannel(ctx context.Context, guildID string) (string, error) {
	if d.store != nil {
		settings, err := storage.LoadGuildSettings(ctx, d.store, guildID)
		switch {
		case err == nil && settings.NotificationChannelID != "":
			return settings.NotificationChannelID, nil
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			d.logger.Warn("Failed to load guild settings", "guild", guildID, "error", err)
		}
	}

	channels, err := d.messenger.GuildChannels(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("list channels of guild %s: %w", guildID, err)
	}
	if id, ok := matchChannel(channels, d.keywords); ok {
		return id, nil
	}
	return "", fmt.Errorf("guild %s: %w", guildID, ErrNoChannel)
}

// matchChannel returns the first channel matching the highest priority keyword.
func matchChannel(channels []Channel, keywords []string) (string, bool) {
	for _, k := range keywords {
		for _, c := range channels {
			if strings.Contains(strings.ToLower(c.Name), k) {
				return c.ID, true
			}
		}
	}
	return "", false
}

func sessionTarget(s checkin.Session) Target {
	return Target{GuildID: s.GuildID, ChannelID: s.ChannelID}
}

// SessionReminder implements reminder.Notifier
func (d *Dispatcher) SessionReminder(ctx context.Context, sess checkin.Session, r reminder.Reminder) error {
	return d.Deliver(ctx, sessionTarget(sess), SessionReminderEmbed(sess, r)).Err()
}

// CustomReminder implements reminder.Notifier
func (d *Dispatcher) CustomReminder(ctx context.Context, c reminder.CustomReminder) error {
	return d.Deliver(ctx, Target{GuildID: c.GuildID, ChannelID: c.ChannelID}, CustomReminderEmbed(c)).Err()
}

// HandleCheckInEvent implements checkin.Observer. Announcements are sent in
// the background so command handlers are not held up; Wait blocks until they
// finish.
func (d *Dispatcher) HandleCheckInEvent(ctx context.Context, ev checkin.Event) {
	embed := EventEmbed(ev)
	if embed == nil {
		return
	}

	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		report := d.Deliver(context.WithoutCancel(ctx), sessionTarget(ev.Session), embed)
		if err := report.Err(); err != nil {
			d.logger.Warn("Check-in announcement not delivered", "event", ev.Type, "session", ev.Session.ID, "error", err)
		}
	}()
}

// Wait blocks until background announcements complete
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

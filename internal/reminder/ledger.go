package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/storage"
)

// Ledger records which reminders already fired
type Ledger interface {
	// MarkFired records key as fired at the given time. It reports false when
	// key was already recorded, in which case nothing changes.
	MarkFired(ctx context.Context, key string, at time.Time) (bool, error)
	// Fired reports whether key has been recorded
	Fired(ctx context.Context, key string) (bool, error)
	// Cleanup forgets records made before cutoff and returns how many were dropped
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
}

// FiredKey is the store key of a persistent MemoryLedger
const FiredKey = "reminder_fired"

// MemoryLedger keeps fired records in a map. When created with a store it
// writes the map through on every change, so restarts keep their history.
type MemoryLedger struct {
	mu     sync.Mutex
	fired  map[string]time.Time
	store  storage.Store
	logger *slog.Logger
}

// NewMemoryLedger creates a ledger. store may be nil.
func NewMemoryLedger(store storage.Store, logger *slog.Logger) *MemoryLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryLedger{
		fired:  make(map[string]time.Time),
		store:  store,
		logger: logger,
	}
}

// Load reads previously persisted records
func (l *MemoryLedger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}

	fired := make(map[string]time.Time)
	if _, err := storage.GetJSON(ctx, l.store, FiredKey, &fired); err != nil {
		return fmt.Errorf("load fired reminders: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range fired {
		l.fired[k] = v
	}
	return nil
}

func (l *MemoryLedger) MarkFired(ctx context.Context, key string, at time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.fired[key]; ok {
		return false, nil
	}
	l.fired[key] = at
	// The record stays in memory even if the write fails; the next
	// successful write carries it.
	l.persist(ctx)
	return true, nil
}

func (l *MemoryLedger) Fired(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.fired[key]
	return ok, nil
}

func (l *MemoryLedger) Cleanup(ctx context.Context, cutoff time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for k, at := range l.fired {
		if at.Before(cutoff) {
			delete(l.fired, k)
			removed++
		}
	}
	if removed > 0 {
		l.persist(ctx)
	}
	return removed, nil
}

// Len returns the number of records held
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fired)
}

// persist writes the map through. Callers must hold mu.
func (l *MemoryLedger) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	if err := storage.SetJSON(ctx, l.store, FiredKey, l.fired); err != nil {
		l.logger.Warn("Failed to persist fired reminders", "error", err)
	}
}

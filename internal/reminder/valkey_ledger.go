package reminder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/mateusoliveiradev1/bot-dc-sub001/internal/cache"
)

// DefaultValkeyPrefix namespaces ledger keys
const DefaultValkeyPrefix = "hawk:reminder:fired:"

// ValkeyLedger stores fired records as Valkey keys that expire after the
// retention window. Several bot processes can share one ledger.
type ValkeyLedger struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyLedger creates a ledger whose records live for retention
func NewValkeyLedger(client valkey.Client, prefix string, retention time.Duration) *ValkeyLedger {
	if prefix == "" {
		prefix = DefaultValkeyPrefix
	}
	return &ValkeyLedger{client: client, prefix: prefix, ttl: retention}
}

func (l *ValkeyLedger) key(k string) string {
	return l.prefix + k
}

// MarkFired claims key with SET NX EX
func (l *ValkeyLedger) MarkFired(ctx context.Context, key string, at time.Time) (bool, error) {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	cmd := l.client.B().Set().Key(l.key(key)).Value(value).Nx().Ex(l.ttl).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if cache.IsNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark reminder %s fired: %w", key, err)
	}
	return true, nil
}

func (l *ValkeyLedger) Fired(ctx context.Context, key string) (bool, error) {
	cmd := l.client.B().Exists().Key(l.key(key)).Build()
	n, err := l.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return false, fmt.Errorf("check reminder %s fired: %w", key, err)
	}
	return n > 0, nil
}

// Cleanup is a no-op; Valkey expires records on its own.
func (l *ValkeyLedger) Cleanup(context.Context, time.Time) (int, error) {
	return 0, nil
}

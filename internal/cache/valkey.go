// Package cache builds the optional Valkey client used for fired-reminder
// bookkeeping shared across bot restarts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Config holds Valkey connection settings
type Config struct {
	Addr        string
	Password    string
	DialTimeout time.Duration

	// DisableCache turns off client side caching, required for miniredis.
	DisableCache bool
}

// NewClient creates a Valkey client and verifies it with PING.
func NewClient(ctx context.Context, cfg Config) (valkey.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("valkey addr is empty")
	}

	opts := valkey.ClientOption{
		InitAddress:  []string{addr},
		Password:     cfg.Password,
		DisableCache: cfg.DisableCache,
	}
	if cfg.DialTimeout > 0 {
		opts.Dialer.Timeout = cfg.DialTimeout
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client failed: %w", err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}

	return client, nil
}

// IsNil reports whether err is (or wraps) a Valkey nil reply.
func IsNil(err error) bool {
	for unwrapped := err; unwrapped != nil; unwrapped = errors.Unwrap(unwrapped) {
		if valkey.IsValkeyNil(unwrapped) {
			return true
		}
	}
	return false
}

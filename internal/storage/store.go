// Package storage defines the key-value document store the bot persists its
// state in, together with JSON helpers shared by every backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("document not found")

// Store is an opaque key-value store of JSON documents.
type Store interface {
	// Get returns the raw document stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set replaces the document stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Persist flushes pending writes to durable storage.
	Persist(ctx context.Context) error
	Close() error
}

// GetJSON decodes the document under key into v. It reports false when the
// key does not exist.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v, stores it under key and persists the store.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := s.Persist(ctx); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. It backs STORE_BACKEND=memory
// and tests; FailSet and FailPersist inject errors into the write path.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte

	FailSet     error
	FailPersist error
	persists    int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSet != nil {
		return m.FailSet
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.docs[key] = stored
	return nil
}

func (m *MemoryStore) Persist(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPersist != nil {
		return m.FailPersist
	}
	m.persists++
	return nil
}

// Persists reports how many successful Persist calls were made.
func (m *MemoryStore) Persists() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persists
}

// SetFailure sets FailSet under the store lock.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	m.FailSet = err
	m.mu.Unlock()
}

func (m *MemoryStore) Close() error {
	return nil
}

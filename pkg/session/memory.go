package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	cred      Credential
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory credential store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A positive ttl makes credentials
// disappear after that long.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Get returns the credential for id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	cred := e.cred
	return &cred, nil
}

// Set replaces the credential for id.
func (m *MemoryStore) Set(_ context.Context, id string, cred *Credential) error {
	e := memoryEntry{cred: *cred}
	if m.ttl > 0 {
		e.expiresAt = time.Now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = e
	return nil
}

// Delete removes the credential for id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// DeleteIf removes the credential for id if it still holds token.
func (m *MemoryStore) DeleteIf(_ context.Context, id, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || e.cred.Token != token {
		return false, nil
	}
	delete(m.entries, id)
	return true, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

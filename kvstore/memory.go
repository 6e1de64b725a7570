// Package kvstore provides vault.Store adapters: a mutex-guarded in-memory
// map for tests and single-instance deployments, and a SQLite-backed store
// for durable single-node setups. Both implement compare-and-swap as a
// genuinely atomic operation.
package kvstore

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/openucp/ucp-go/vault"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Memory is an in-process vault.Store. Expired entries are evicted lazily
// on access, mirroring TTL stores where eviction and "never existed" are
// indistinguishable.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements vault.Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok {
		return nil, vault.ErrKeyNotFound
	}
	return bytes.Clone(entry.value), nil
}

// SetWithTTL implements vault.Store. A non-positive ttl stores without
// expiry.
func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Delete implements vault.Store.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	delete(m.entries, key)
	return ok, nil
}

// CompareAndSwap implements vault.Store. The whole compare-and-replace runs
// under one lock, so two concurrent callers can never both succeed.
func (m *Memory) CompareAndSwap(_ context.Context, key string, expected, replacement []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.live(key)
	if !ok || !bytes.Equal(entry.value, expected) {
		return false, nil
	}
	entry.value = bytes.Clone(replacement)
	m.entries[key] = entry
	return true, nil
}

// live returns the entry for key if present and not expired, evicting it
// otherwise. Callers must hold the lock.
func (m *Memory) live(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses a map for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
	used    int64
	quota   int64 // bytes of key+value; 0 means unlimited
}

// NewMemoryStore creates a new in-memory store without a quota.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithQuota(0)
}

// NewMemoryStoreWithQuota creates an in-memory store that rejects writes once the
// combined size of all keys and values would exceed quota bytes.
func NewMemoryStoreWithQuota(quota int64) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
		quota:   quota,
	}
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, exists := m.entries[key]
	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value, enforcing the quota if one is configured.
func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + int64(len(value))
	if old, exists := m.entries[key]; exists {
		next -= int64(len(old))
	} else {
		next += int64(len(key))
	}
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}

	m.entries[key] = value
	m.used = next
	return nil
}

// Remove deletes a key from memory.
func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: no error if key doesn't exist
	if old, exists := m.entries[key]; exists {
		m.used -= int64(len(key) + len(old))
		delete(m.entries, key)
	}
	return nil
}

// Keys returns all keys in ascending order.
func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear wipes the namespace.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]string)
	m.used = 0
	return nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

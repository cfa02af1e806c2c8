// Package store provides the flat key/value namespace that backs all persisted player data.
// One Store instance is scoped to a single origin; keys and values are opaque strings.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded is returned by Set when the write would exceed the configured quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Store defines the interface for key/value persistence operations.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Get retrieves the value stored under key.
	// Returns ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set creates or overwrites the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes a key.
	// Returns no error if the key doesn't exist (idempotent).
	Remove(ctx context.Context, key string) error

	// Keys returns every key in the namespace in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes every key in the namespace.
	Clear(ctx context.Context) error

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Entry is a single key/value pair, used by backends that persist records.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KeysWithPrefix returns the keys of st that start with prefix.
func KeysWithPrefix(ctx context.Context, st Store, prefix string) ([]string, error) {
	keys, err := st.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

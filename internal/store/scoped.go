package store

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ScopedStore is a view of a parent store restricted to keys under a fixed prefix.
// Keys passed to and returned from the view never include the prefix, and Clear only
// touches the view's own keys. Closing the view does not close the parent.
//
// A view created with ScopedWithQuota also enforces a byte budget over its own keys and
// values, independent of whatever else shares the parent.
type ScopedStore struct {
	parent Store
	prefix string
	quota  int64

	mu    sync.Mutex
	used  int64
	sized bool
}

// Scoped returns a view of parent whose keys live under prefix.
func Scoped(parent Store, prefix string) *ScopedStore {
	return &ScopedStore{parent: parent, prefix: prefix}
}

// ScopedWithQuota returns a view like Scoped whose writes fail with ErrQuotaExceeded once
// the combined size of the view's keys and values would exceed quota bytes. A quota of 0
// disables the check.
func ScopedWithQuota(parent Store, prefix string, quota int64) *ScopedStore {
	return &ScopedStore{parent: parent, prefix: prefix, quota: quota}
}

func (s *ScopedStore) Get(ctx context.Context, key string) (string, error) {
	return s.parent.Get(ctx, s.prefix+key)
}

func (s *ScopedStore) Set(ctx context.Context, key, value string) error {
	if s.quota <= 0 {
		return s.parent.Set(ctx, s.prefix+key, value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.size(ctx); err != nil {
		return err
	}

	next := s.used + int64(len(value))
	old, err := s.parent.Get(ctx, s.prefix+key)
	switch {
	case err == nil:
		next -= int64(len(old))
	case errors.Is(err, ErrNotFound):
		next += int64(len(key))
	default:
		return err
	}
	if next > s.quota {
		return ErrQuotaExceeded
	}
	if err := s.parent.Set(ctx, s.prefix+key, value); err != nil {
		return err
	}
	s.used = next
	return nil
}

func (s *ScopedStore) Remove(ctx context.Context, key string) error {
	if s.quota <= 0 {
		return s.parent.Remove(ctx, s.prefix+key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, err := s.parent.Get(ctx, s.prefix+key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := s.parent.Remove(ctx, s.prefix+key); err != nil {
		return err
	}
	if err == nil && s.sized {
		s.used -= int64(len(key) + len(old))
	}
	return nil
}

func (s *ScopedStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := KeysWithPrefix(ctx, s.parent, s.prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	return keys, nil
}

func (s *ScopedStore) Clear(ctx context.Context) error {
	if s.quota > 0 {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.sized = false
	}
	keys, err := KeysWithPrefix(ctx, s.parent, s.prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.parent.Remove(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *ScopedStore) Close() error { return nil }

// Used returns the bytes currently charged against the quota.
func (s *ScopedStore) Used(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.size(ctx); err != nil {
		return 0, err
	}
	return s.used, nil
}

// size measures the view's current contents; callers hold s.mu.
func (s *ScopedStore) size(ctx context.Context) error {
	if s.sized {
		return nil
	}
	keys, err := KeysWithPrefix(ctx, s.parent, s.prefix)
	if err != nil {
		return err
	}
	var used int64
	for _, k := range keys {
		v, err := s.parent.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		used += int64(len(k)-len(s.prefix)) + int64(len(v))
	}
	s.used = used
	s.sized = true
	return nil
}

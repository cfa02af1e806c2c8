package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"
)

// badgerRecord is the unit persisted by BadgerStore.
type badgerRecord struct {
	ID     string `badgerhold:"key"`
	Origin string `badgerhold:"index"`
	Key    string
	Value  string
}

// BadgerStore keeps the namespace in an embedded Badger database.
type BadgerStore struct {
	db     *badgerhold.Store
	origin string
}

// OpenBadger opens the Badger database at dir.
func OpenBadger(dir, origin string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // badger's own logger is too chatty

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db, origin: origin}, nil
}

func (b *BadgerStore) recordID(key string) string {
	return b.origin + "\x00" + key
}

// Get retrieves a value by key.
func (b *BadgerStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var rec badgerRecord
	err := b.db.Get(b.recordID(key), &rec)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return rec.Value, nil
}

// Set creates or overwrites a value.
func (b *BadgerStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := b.recordID(key)
	rec := badgerRecord{ID: id, Origin: b.origin, Key: key, Value: value}
	if err := b.db.Upsert(id, &rec); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Remove deletes a key.
func (b *BadgerStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Delete(b.recordID(key), &badgerRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Keys lists every key of the origin in ascending order.
func (b *BadgerStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []badgerRecord
	if err := b.db.Find(&recs, badgerhold.Where("Origin").Eq(b.origin).SortBy("Key")); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		keys = append(keys, r.Key)
	}
	return keys, nil
}

// Clear removes every key of the origin.
func (b *BadgerStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.db.DeleteMatching(&badgerRecord{}, badgerhold.Where("Origin").Eq(b.origin)); err != nil {
		return fmt.Errorf("failed to clear namespace: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

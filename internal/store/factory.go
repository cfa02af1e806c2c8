package store

import (
	"context"
	"fmt"

	mydb "github.com/TimurManjosov/playmate/internal/db"
)

// Options selects and configures a storage backend.
type Options struct {
	Type       string // memory, badger, postgres or sqlite
	DSN        string // postgres connection string
	BadgerPath string // badger data directory
	SQLitePath string // sqlite database file
	Origin     string // namespace the store is scoped to
}

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "badger", "postgres", "sqlite"
func NewStore(ctx context.Context, opts Options) (Store, error) {
	switch opts.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadger(opts.BadgerPath, opts.Origin)
	case "postgres":
		pool, err := mydb.NewPool(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		st, err := NewPostgresStore(ctx, pool, opts.Origin)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath, opts.Origin)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", opts.Type)
	}
}

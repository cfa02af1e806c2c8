package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	origin     TEXT        NOT NULL,
	key        TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (origin, key)
)`

// PostgresStore is a PostgreSQL implementation of the Store interface.
// Rows of every origin share one table; each store only sees its own origin.
type PostgresStore struct {
	pool   *pgxpool.Pool
	origin string
}

// NewPostgresStore creates a new PostgreSQL-backed store and ensures the table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, origin string) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create kv_entries table: %w", err)
	}
	return &PostgresStore{pool: pool, origin: origin}, nil
}

// Get retrieves a value by key from the database.
func (p *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE origin = $1 AND key = $2`,
		p.origin, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set creates or updates a value in the database.
func (p *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO kv_entries (origin, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (origin, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		p.origin, key, value,
	)
	return err
}

// Remove deletes a key from the database.
func (p *PostgresStore) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE origin = $1 AND key = $2`,
		p.origin, key,
	)
	return err
}

// keysQuery orders by byte value whatever the database locale, matching the other backends.
const keysQuery = `SELECT key FROM kv_entries WHERE origin = $1 ORDER BY key COLLATE "C"`

// Keys lists every key of the origin in byte order.
func (p *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, keysQuery, p.origin)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Clear removes every row of the origin.
func (p *PostgresStore) Clear(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM kv_entries WHERE origin = $1`, p.origin)
	return err
}

// Close closes the database connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

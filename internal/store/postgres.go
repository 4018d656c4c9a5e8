package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is an interface that defines the subset of pgx methods the store
// needs. It is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type Database interface {
	// Begin starts a new transaction and returns the transaction object and any error encountered.
	Begin(ctx context.Context) (pgx.Tx, error)
	// Exec executes a SQL command with the provided arguments and returns the command tag and any error encountered.
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	// Query executes a SQL query and returns the rows that match the query and any error encountered.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a SQL query that is expected to return a single row and returns the row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SQL statements used by the Postgres store. Exported so tests can match them
// with pgxmock expectations.
const (
	MigrateSQL = `
		CREATE TABLE IF NOT EXISTS records (
			key     TEXT PRIMARY KEY,
			value   JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1
		)`
	GetSQL          = `SELECT value FROM records WHERE key = $1`
	UpsertSQL       = `INSERT INTO records (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = records.version + 1`
	DeleteSQL       = `DELETE FROM records WHERE key = $1`
	ListByPrefixSQL = `SELECT value FROM records WHERE starts_with(key, $1) ORDER BY key`
	LockSQL         = `SELECT value FROM records WHERE key = $1 FOR UPDATE`
)

// Postgres is the production Store implementation: one table of versioned
// JSON records, with row locks providing the atomic check-and-set.
type Postgres struct {
	db Database
}

// NewPostgres creates a Store backed by the given database.
func NewPostgres(db Database) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the records table if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, MigrateSQL); err != nil {
		return fmt.Errorf("failed to create records table: %w", err)
	}
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx, GetSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get key %q: %w", key, err)
	}
	return value, nil
}

// Set writes the value under key, creating or replacing the record.
func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.db.Exec(ctx, UpsertSQL, key, value); err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

// Delete removes the record under key. Deleting a missing key is not an error.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, DeleteSQL, key); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// ListByPrefix returns the values of every record whose key starts with
// prefix, ordered by key.
func (p *Postgres) ListByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	rows, err := p.db.Query(ctx, ListByPrefixSQL, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys with prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var value []byte
		if errScan := rows.Scan(&value); errScan != nil {
			return nil, fmt.Errorf("failed to scan value row: %w", errScan)
		}
		values = append(values, value)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read value rows: %w", err)
	}
	return values, nil
}

// Update runs fn on the current value of key inside one transaction, holding
// a row lock for the duration, and writes the result back.
func (p *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	current, err := lockValue(ctx, tx, key)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, UpsertSQL, key, next); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return tx.Commit(ctx)
}

// UpdateMulti runs fn on the current values of keys inside one transaction.
// Locks are taken in sorted key order so concurrent multi-key updates cannot
// deadlock. A reader never observes a partially applied result.
func (p *Postgres) UpdateMulti(ctx context.Context, keys []string, fn MultiUpdateFunc) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	ordered := make([]string, len(keys))
	copy(ordered, keys)
	sort.Strings(ordered)

	current := make(map[string][]byte, len(ordered))
	for _, key := range ordered {
		value, lockErr := lockValue(ctx, tx, key)
		if lockErr != nil {
			return lockErr
		}
		if value != nil {
			current[key] = value
		}
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	for _, key := range ordered {
		value, ok := next[key]
		if !ok {
			continue
		}
		if _, err = tx.Exec(ctx, UpsertSQL, key, value); err != nil {
			return fmt.Errorf("failed to write key %q: %w", key, err)
		}
	}
	return tx.Commit(ctx)
}

func lockValue(ctx context.Context, tx pgx.Tx, key string) ([]byte, error) {
	var value []byte
	err := tx.QueryRow(ctx, LockSQL, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock key %q: %w", key, err)
	}
	return value, nil
}

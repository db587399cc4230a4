// Package sessionstore is the durable client-side storage of the logged-in
// session. It is a small key/value table in a local SQLite file.
package sessionstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Fixed keys of the persisted session.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store persists string values by key.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dsn and migrates it.
// ":memory:" gives a store that lives as long as the process.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("in internal/client/sessionstore/sessionstore.go/New(): error while `sql.Open()` calling: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	migrations, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("in internal/client/sessionstore/sessionstore.go/New(): error while `goose.NewProvider()` calling: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("in internal/client/sessionstore/sessionstore.go/New(): error while `provider.Up()` calling: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the value under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get session[%s]: %w", key, err)
	}
	return value, true, nil
}

// SetAll stores every pair in one transaction, replacing previous values.
func (s *Store) SetAll(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		if err != nil {
			return fmt.Errorf("failed to set session[%s]: %w", key, err)
		}
	}

	return tx.Commit()
}

// Delete removes the given keys. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete session[%s]: %w", key, err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

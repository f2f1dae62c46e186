// Package store is the cache store: the durable local cache of issues,
// comments, goals, sync state, pending ops, rate-limit state, watched
// sources, and source links. Single-writer, multi-reader, backed by an
// embedded SQLite database opened in WAL mode so readers never block on
// a writer.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the embedded database connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, enabling WAL
// journaling and idempotently creating tables and indices. A single
// *sql.DB is safe for concurrent readers during a writer's transaction;
// SQLite's own locking serializes writers.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	escaped := strings.ReplaceAll(path, " ", "%20")
	db, err := sql.Open("sqlite", "file:"+escaped+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a single transaction, committing on success and
// rolling back on error or panic. Every "save all" operation in this
// package goes through this helper so callers never observe partial
// state.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

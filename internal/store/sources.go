package store

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/forgesync/frg/internal/types"
)

// LinkSource records a local directory's link to a remote container,
// replacing any prior link at the same path.
func (s *Store) LinkSource(ctx context.Context, src types.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (local_path, forge_kind, remote_id, display_name, linked_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(local_path) DO UPDATE SET
			forge_kind = excluded.forge_kind, remote_id = excluded.remote_id,
			display_name = excluded.display_name, linked_at = excluded.linked_at
	`, src.LocalPath, string(src.ForgeKind), src.RemoteID, src.DisplayName, formatTime(src.LinkedAt))
	return wrapDBError("link source", err)
}

// UnlinkSource removes a source link and any corresponding watch entry.
func (s *Store) UnlinkSource(ctx context.Context, localPath string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE local_path = ?`, localPath); err != nil {
			return wrapDBError("unlink source", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM watched_sources WHERE local_path = ?`, localPath); err != nil {
			return wrapDBError("unlink watched source", err)
		}
		return nil
	})
}

// GetSource returns the source link for localPath, or ErrNotFound.
func (s *Store) GetSource(ctx context.Context, localPath string) (*types.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT local_path, forge_kind, remote_id, display_name, linked_at FROM sources WHERE local_path = ?
	`, localPath)
	var src types.Source
	var linkedAt string
	if err := row.Scan(&src.LocalPath, &src.ForgeKind, &src.RemoteID, &src.DisplayName, &linkedAt); err != nil {
		return nil, wrapDBError("get source", err)
	}
	var err error
	if src.LinkedAt, err = parseTime(linkedAt); err != nil {
		return nil, err
	}
	return &src, nil
}

// AddWatchedSource marks localPath as eligible for background
// reconciliation. Idempotent on an existing entry.
func (s *Store) AddWatchedSource(ctx context.Context, localPath string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watched_sources (local_path, added_at, last_accessed) VALUES (?, ?, ?)
		ON CONFLICT(local_path) DO NOTHING
	`, localPath, formatTime(now), formatTime(now))
	return wrapDBError("add watched source", err)
}

// RemoveWatchedSource stops background reconciliation for localPath.
func (s *Store) RemoveWatchedSource(ctx context.Context, localPath string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM watched_sources WHERE local_path = ?`, localPath)
	return wrapDBError("remove watched source", err)
}

// Touch updates localPath's last_accessed timestamp. Called on every read
// command against a linked source, per the data model.
func (s *Store) Touch(ctx context.Context, localPath string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE watched_sources SET last_accessed = ? WHERE local_path = ?
	`, formatTime(now), localPath)
	return wrapDBError("touch watched source", err)
}

// ListWatchedSources returns watched sources ordered by last_accessed
// descending, the order the daemon's main cycle visits them in.
func (s *Store) ListWatchedSources(ctx context.Context) ([]types.WatchedSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_path, added_at, last_accessed FROM watched_sources ORDER BY last_accessed DESC
	`)
	if err != nil {
		return nil, wrapDBError("list watched sources", err)
	}
	defer rows.Close()

	var watched []types.WatchedSource
	for rows.Next() {
		var w types.WatchedSource
		var addedAt, lastAccessed string
		if err := rows.Scan(&w.LocalPath, &addedAt, &lastAccessed); err != nil {
			return nil, wrapDBError("scan watched source", err)
		}
		var err error
		if w.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		if w.LastAccessed, err = parseTime(lastAccessed); err != nil {
			return nil, err
		}
		watched = append(watched, w)
	}
	return watched, wrapDBError("iterate watched sources", rows.Err())
}

// CleanupStaleSources drops watched-source and source-link rows whose
// local_path no longer exists on disk, and returns the number removed.
// Runs once at daemon startup and again when the directory watcher sees
// a removal.
func (s *Store) CleanupStaleSources(ctx context.Context) (int, error) {
	watched, err := s.ListWatchedSources(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, w := range watched {
		if fi, err := os.Stat(w.LocalPath); err == nil {
			if fi.IsDir() {
				continue
			}
		} else if !os.IsNotExist(err) {
			return removed, err
		}
		if err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM watched_sources WHERE local_path = ?`, w.LocalPath); err != nil {
				return wrapDBError("cleanup watched source", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE local_path = ?`, w.LocalPath); err != nil {
				return wrapDBError("cleanup source", err)
			}
			return nil
		}); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

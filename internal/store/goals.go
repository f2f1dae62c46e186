package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/forgesync/frg/internal/types"
)

// SaveGoals atomically replaces the goal set for remoteID.
func (s *Store) SaveGoals(ctx context.Context, remoteID string, goals []types.Goal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE remote_id = ?`, remoteID); err != nil {
			return wrapDBError("delete goals", err)
		}
		for _, g := range goals {
			if err := upsertGoalTx(ctx, tx, remoteID, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveGoal upserts a single goal row — used when the remote returns a
// freshly created goal out-of-band of a full sync.
func (s *Store) SaveGoal(ctx context.Context, remoteID string, goal types.Goal) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertGoalTx(ctx, tx, remoteID, goal)
	})
}

func upsertGoalTx(ctx context.Context, tx *sql.Tx, remoteID string, g types.Goal) error {
	var targetDate any
	if g.TargetDate != nil {
		targetDate = formatTime(*g.TargetDate)
	}
	var openCount, closedCount any
	if g.OpenCount != nil {
		openCount = *g.OpenCount
	}
	if g.ClosedCount != nil {
		closedCount = *g.ClosedCount
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO goals (remote_id, id, name, description, target_date, state, progress, open_count, closed_count, created_at, updated_at, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(remote_id, id) DO UPDATE SET
			name = excluded.name, description = excluded.description, target_date = excluded.target_date,
			state = excluded.state, progress = excluded.progress, open_count = excluded.open_count,
			closed_count = excluded.closed_count, updated_at = excluded.updated_at, url = excluded.url
	`, remoteID, g.ID, g.Name, g.Description, targetDate, string(g.State), g.Progress,
		openCount, closedCount, formatTime(g.CreatedAt), formatTime(g.UpdatedAt), g.URL)
	if err != nil {
		return wrapDBError(fmt.Sprintf("upsert goal %s", g.ID), err)
	}
	return nil
}

// LoadGoals returns goals for remoteID, optionally filtered by state.
func (s *Store) LoadGoals(ctx context.Context, remoteID, stateFilter string) ([]types.Goal, error) {
	query := `SELECT remote_id, id, name, description, target_date, state, progress, open_count, closed_count, created_at, updated_at, url FROM goals WHERE remote_id = ?`
	args := []any{remoteID}
	if stateFilter != "" {
		query += ` AND state = ?`
		args = append(args, stateFilter)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load goals", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// LoadGoalByName returns the goal with the given name, or ErrNotFound.
func (s *Store) LoadGoalByName(ctx context.Context, remoteID, name string) (*types.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT remote_id, id, name, description, target_date, state, progress, open_count, closed_count, created_at, updated_at, url
		FROM goals WHERE remote_id = ? AND name = ?
	`, remoteID, name)
	goal, err := scanGoalRow(row)
	if err != nil {
		return nil, wrapDBError("load goal by name", err)
	}
	return goal, nil
}

// CountGoals returns the number of cached goals for remoteID.
func (s *Store) CountGoals(ctx context.Context, remoteID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM goals WHERE remote_id = ?`, remoteID).Scan(&count)
	return count, wrapDBError("count goals", err)
}

func scanGoalRow(row scannableRow) (*types.Goal, error) {
	var g types.Goal
	var targetDate sql.NullString
	var openCount, closedCount sql.NullInt64
	var createdAt, updatedAt string
	if err := row.Scan(
		&g.RemoteID, &g.ID, &g.Name, &g.Description, &targetDate, &g.State, &g.Progress,
		&openCount, &closedCount, &createdAt, &updatedAt, &g.URL,
	); err != nil {
		return nil, err
	}
	if targetDate.Valid && targetDate.String != "" {
		t, err := parseTime(targetDate.String)
		if err != nil {
			return nil, err
		}
		g.TargetDate = &t
	}
	if openCount.Valid {
		n := int(openCount.Int64)
		g.OpenCount = &n
	}
	if closedCount.Valid {
		n := int(closedCount.Int64)
		g.ClosedCount = &n
	}
	var err error
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if g.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

func scanGoals(rows *sql.Rows) ([]types.Goal, error) {
	var goals []types.Goal
	for rows.Next() {
		g, err := scanGoalRow(rows)
		if err != nil {
			return nil, wrapDBError("scan goal", err)
		}
		goals = append(goals, *g)
	}
	return goals, wrapDBError("iterate goals", rows.Err())
}

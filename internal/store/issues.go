package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgesync/frg/internal/types"
)

// SaveIssues atomically replaces the issue set for remoteID: deletes all
// existing rows for remoteID, inserts all of issues, and updates
// SyncState with the current timestamp and the new count. Runs inside a
// single transaction so readers never see a mix of old and new state.
func (s *Store) SaveIssues(ctx context.Context, remoteID string, issues []types.Issue) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE remote_id = ?`, remoteID); err != nil {
			return wrapDBError("delete issues", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO issues (remote_id, number, title, body, state, author, labels, created_at, updated_at, url, goal_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return wrapDBError("prepare insert issue", err)
		}
		defer stmt.Close()

		for _, issue := range issues {
			labelsJSON, err := json.Marshal(issue.Labels)
			if err != nil {
				return fmt.Errorf("marshal labels for issue %d: %w", issue.Number, err)
			}
			if _, err := stmt.ExecContext(ctx,
				remoteID, issue.Number, issue.Title, issue.Body, string(issue.State), issue.Author,
				string(labelsJSON), formatTime(issue.CreatedAt), formatTime(issue.UpdatedAt), issue.URL, issue.GoalName,
			); err != nil {
				return wrapDBError(fmt.Sprintf("insert issue %d", issue.Number), err)
			}
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sync_state (remote_id, last_sync, issue_count) VALUES (?, ?, ?)
			ON CONFLICT(remote_id) DO UPDATE SET last_sync = excluded.last_sync, issue_count = excluded.issue_count
		`, remoteID, formatTime(now), len(issues)); err != nil {
			return wrapDBError("update sync state", err)
		}
		return nil
	})
}

// LoadIssuesFiltered returns issues for remoteID ordered by number
// descending. label matches by substring against the serialized labels
// array (an approximation noted as an Open Question: false positives are
// possible between labels sharing a prefix). state is an exact match.
// Empty filters return all issues.
func (s *Store) LoadIssuesFiltered(ctx context.Context, remoteID, label, state string) ([]types.Issue, error) {
	query := `SELECT remote_id, number, title, body, state, author, labels, created_at, updated_at, url, goal_name FROM issues WHERE remote_id = ?`
	args := []any{remoteID}

	if label != "" {
		query += ` AND labels LIKE ?`
		args = append(args, "%"+label+"%")
	}
	if state != "" {
		query += ` AND state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY number DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("load issues", err)
	}
	defer rows.Close()
	return scanIssues(rows)
}

// LoadIssue returns a single issue, or ErrNotFound.
func (s *Store) LoadIssue(ctx context.Context, remoteID string, number uint64) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT remote_id, number, title, body, state, author, labels, created_at, updated_at, url, goal_name
		FROM issues WHERE remote_id = ? AND number = ?
	`, remoteID, number)
	issue, err := scanIssueRow(row)
	if err != nil {
		return nil, wrapDBError("load issue", err)
	}
	return issue, nil
}

type scannableRow interface {
	Scan(dest ...any) error
}

func scanIssueRow(row scannableRow) (*types.Issue, error) {
	var issue types.Issue
	var labelsJSON, createdAt, updatedAt string
	if err := row.Scan(
		&issue.RemoteID, &issue.Number, &issue.Title, &issue.Body, &issue.State, &issue.Author,
		&labelsJSON, &createdAt, &updatedAt, &issue.URL, &issue.GoalName,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labelsJSON), &issue.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	var err error
	if issue.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if issue.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &issue, nil
}

func scanIssues(rows *sql.Rows) ([]types.Issue, error) {
	var issues []types.Issue
	for rows.Next() {
		issue, err := scanIssueRow(rows)
		if err != nil {
			return nil, wrapDBError("scan issue", err)
		}
		issues = append(issues, *issue)
	}
	return issues, wrapDBError("iterate issues", rows.Err())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

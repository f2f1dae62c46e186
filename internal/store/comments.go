package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/forgesync/frg/internal/types"
)

// SaveComments atomically replaces the comment set for remoteID,
// analogous to SaveIssues.
func (s *Store) SaveComments(ctx context.Context, remoteID string, comments []types.Comment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE remote_id = ?`, remoteID); err != nil {
			return wrapDBError("delete comments", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO comments (remote_id, comment_id, issue_number, body, author, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return wrapDBError("prepare insert comment", err)
		}
		defer stmt.Close()

		for _, c := range comments {
			if _, err := stmt.ExecContext(ctx, remoteID, c.CommentID, c.IssueNumber, c.Body, c.Author, formatTime(c.CreatedAt)); err != nil {
				return wrapDBError(fmt.Sprintf("insert comment %s", c.CommentID), err)
			}
		}
		return nil
	})
}

// LoadComments returns comments for a single issue, ordered by comment_id.
func (s *Store) LoadComments(ctx context.Context, remoteID string, issueNumber uint64) ([]types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT remote_id, comment_id, issue_number, body, author, created_at
		FROM comments WHERE remote_id = ? AND issue_number = ? ORDER BY comment_id
	`, remoteID, issueNumber)
	if err != nil {
		return nil, wrapDBError("load comments", err)
	}
	defer rows.Close()
	return scanComments(rows)
}

// CountCommentsByIssue returns the number of cached comments per issue
// number for remoteID.
func (s *Store) CountCommentsByIssue(ctx context.Context, remoteID string) (map[uint64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_number, COUNT(*) FROM comments WHERE remote_id = ? GROUP BY issue_number
	`, remoteID)
	if err != nil {
		return nil, wrapDBError("count comments", err)
	}
	defer rows.Close()

	counts := make(map[uint64]int)
	for rows.Next() {
		var number uint64
		var count int
		if err := rows.Scan(&number, &count); err != nil {
			return nil, wrapDBError("scan comment count", err)
		}
		counts[number] = count
	}
	return counts, wrapDBError("iterate comment counts", rows.Err())
}

func scanComments(rows *sql.Rows) ([]types.Comment, error) {
	var comments []types.Comment
	for rows.Next() {
		var c types.Comment
		var createdAt string
		if err := rows.Scan(&c.RemoteID, &c.CommentID, &c.IssueNumber, &c.Body, &c.Author, &createdAt); err != nil {
			return nil, wrapDBError("scan comment", err)
		}
		var err error
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, wrapDBError("iterate comments", rows.Err())
}

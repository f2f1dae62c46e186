package store

import (
	"context"
	"database/sql"

	"github.com/forgesync/frg/internal/types"
)

// GetRateLimitState returns the cached rate-limit budget for forgeKind.
// A missing row is not an error: the zero-value state means "unknown,
// proceed" the first time a forge kind is synced.
func (s *Store) GetRateLimitState(ctx context.Context, forgeKind string) (*types.RateLimitState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT forge_kind, limit_val, remaining, reset_at, last_error, updated_at
		FROM rate_limit_state WHERE forge_kind = ?
	`, forgeKind)

	var rl types.RateLimitState
	var limitVal, remaining, resetAt sql.NullInt64
	var updatedAt string
	err := row.Scan(&rl.ForgeKind, &limitVal, &remaining, &resetAt, &rl.LastError, &updatedAt)
	if err == sql.ErrNoRows {
		return &types.RateLimitState{ForgeKind: forgeKind}, nil
	}
	if err != nil {
		return nil, wrapDBError("get rate limit state", err)
	}
	if limitVal.Valid {
		n := int(limitVal.Int64)
		rl.Limit = &n
	}
	if remaining.Valid {
		n := int(remaining.Int64)
		rl.Remaining = &n
	}
	if resetAt.Valid {
		rl.ResetAt = &resetAt.Int64
	}
	if rl.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rl, nil
}

// SetRateLimitState upserts the rate-limit budget for its forge kind.
func (s *Store) SetRateLimitState(ctx context.Context, rl types.RateLimitState) error {
	var limitVal, remaining, resetAt any
	if rl.Limit != nil {
		limitVal = *rl.Limit
	}
	if rl.Remaining != nil {
		remaining = *rl.Remaining
	}
	if rl.ResetAt != nil {
		resetAt = *rl.ResetAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_limit_state (forge_kind, limit_val, remaining, reset_at, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(forge_kind) DO UPDATE SET
			limit_val = excluded.limit_val, remaining = excluded.remaining, reset_at = excluded.reset_at,
			last_error = excluded.last_error, updated_at = excluded.updated_at
	`, rl.ForgeKind, limitVal, remaining, resetAt, rl.LastError, formatTime(rl.UpdatedAt))
	return wrapDBError("set rate limit state", err)
}

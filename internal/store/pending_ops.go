package store

import (
	"context"
	"time"

	"github.com/forgesync/frg/internal/types"
)

// QueueOp inserts a pending write, returning its assigned id. Ops are
// replayed in insertion order, so id ordering is the replay order.
func (s *Store) QueueOp(ctx context.Context, remoteID string, kind types.OpKind, payload []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_ops (remote_id, op_kind, payload, created_at) VALUES (?, ?, ?, ?)
	`, remoteID, string(kind), string(payload), formatTime(time.Now().UTC()))
	if err != nil {
		return 0, wrapDBError("queue op", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapDBError("queue op id", err)
	}
	return id, nil
}

// LoadPendingOps returns queued ops for remoteID ordered by id ascending,
// the order they must be replayed in.
func (s *Store) LoadPendingOps(ctx context.Context, remoteID string) ([]types.PendingOp, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, remote_id, op_kind, payload, created_at FROM pending_ops WHERE remote_id = ? ORDER BY id ASC
	`, remoteID)
	if err != nil {
		return nil, wrapDBError("load pending ops", err)
	}
	defer rows.Close()

	var ops []types.PendingOp
	for rows.Next() {
		var op types.PendingOp
		var payload, createdAt string
		if err := rows.Scan(&op.ID, &op.RemoteID, &op.OpKind, &payload, &createdAt); err != nil {
			return nil, wrapDBError("scan pending op", err)
		}
		op.Payload = []byte(payload)
		var err error
		if op.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, wrapDBError("iterate pending ops", rows.Err())
}

// CompleteOp removes a queued op by id. Idempotent: completing an id that
// no longer exists is not an error, since a concurrent drain may already
// have removed it.
func (s *Store) CompleteOp(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_ops WHERE id = ?`, id)
	return wrapDBError("complete op", err)
}

// CountPendingOps returns the number of queued ops for remoteID.
func (s *Store) CountPendingOps(ctx context.Context, remoteID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_ops WHERE remote_id = ?`, remoteID).Scan(&count)
	return count, wrapDBError("count pending ops", err)
}

package store

import (
	"context"
	"database/sql"

	"github.com/forgesync/frg/internal/types"
)

// GetSyncState returns the last-sync bookkeeping row for remoteID. A
// missing row means the source has never completed a sync: the zero
// value communicates that to callers deciding whether to sync inline.
func (s *Store) GetSyncState(ctx context.Context, remoteID string) (*types.SyncState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT remote_id, last_sync, issue_count FROM sync_state WHERE remote_id = ?
	`, remoteID)

	var st types.SyncState
	var lastSync string
	err := row.Scan(&st.RemoteID, &lastSync, &st.IssueCount)
	if err == sql.ErrNoRows {
		return &types.SyncState{RemoteID: remoteID}, nil
	}
	if err != nil {
		return nil, wrapDBError("get sync state", err)
	}
	if st.LastSync, err = parseTime(lastSync); err != nil {
		return nil, err
	}
	return &st, nil
}

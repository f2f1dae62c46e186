package handlers

import (
	"context"
	"time"

	"github.com/forgesync/frg/internal/daemonlock"
	"github.com/forgesync/frg/internal/types"
)

// StatusReport is the `status` command's shape: auth readiness per
// forge, current source state, pending-op count, and rate-limit
// cooldowns, plus daemon observability.
type StatusReport struct {
	Auth   map[string]bool `json:"auth"`
	Source *SourceStatus   `json:"source,omitempty"`
	Daemon *DaemonStatus   `json:"daemon,omitempty"`

	RateLimits []RateLimitStatus `json:"rate_limits,omitempty"`
}

// SourceStatus describes the source resolved from the working directory.
type SourceStatus struct {
	LocalPath  string    `json:"local_path"`
	ForgeKind  string    `json:"forge_kind"`
	RemoteID   string    `json:"remote_id"`
	LastSync   time.Time `json:"last_sync,omitzero"`
	IssueCount int       `json:"issue_count"`
	PendingOps int       `json:"pending_ops"`
}

// DaemonStatus reflects the lock file's metadata. Presence alone does
// not imply liveness; only the flock does, and that can't be observed
// without contending for it.
type DaemonStatus struct {
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// RateLimitStatus is one forge kind's persisted budget row.
type RateLimitStatus struct {
	ForgeKind  string `json:"forge_kind"`
	Remaining  *int   `json:"remaining,omitempty"`
	ResetAt    *int64 `json:"reset_at,omitempty"`
	CoolingOff bool   `json:"cooling_off"`
	LastError  string `json:"last_error,omitempty"`
}

// Status assembles the report. An unlinked cwd is not an error here:
// the report simply has no source section.
func (h *Handler) Status(ctx context.Context, cwd, cacheDir string) (*StatusReport, error) {
	report := &StatusReport{
		Auth: map[string]bool{
			string(types.KindREST):    h.Resolver.Ready(types.KindREST),
			string(types.KindGraphQL): h.Resolver.Ready(types.KindGraphQL),
		},
	}

	if src, err := h.ResolveSource(ctx, cwd); err == nil {
		state, err := h.Store.GetSyncState(ctx, src.RemoteID)
		if err != nil {
			return nil, err
		}
		pending, err := h.Store.CountPendingOps(ctx, src.RemoteID)
		if err != nil {
			return nil, err
		}
		report.Source = &SourceStatus{
			LocalPath:  src.LocalPath,
			ForgeKind:  string(src.ForgeKind),
			RemoteID:   src.RemoteID,
			LastSync:   state.LastSync,
			IssueCount: state.IssueCount,
			PendingOps: pending,
		}
	}

	now := time.Now().Unix()
	for _, kind := range []types.ForgeKind{types.KindREST, types.KindGraphQL} {
		rl, err := h.Store.GetRateLimitState(ctx, string(kind))
		if err != nil {
			return nil, err
		}
		if rl.UpdatedAt.IsZero() && rl.Remaining == nil && rl.ResetAt == nil {
			continue
		}
		report.RateLimits = append(report.RateLimits, RateLimitStatus{
			ForgeKind:  string(kind),
			Remaining:  rl.Remaining,
			ResetAt:    rl.ResetAt,
			CoolingOff: rl.ResetAt != nil && now < *rl.ResetAt,
			LastError:  rl.LastError,
		})
	}

	if info, ok := daemonlock.ReadInfo(cacheDir); ok {
		report.Daemon = &DaemonStatus{PID: info.PID, Version: info.Version, StartedAt: info.StartedAt}
	}
	return report, nil
}

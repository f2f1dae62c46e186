// Package queue is the write queue (C3): it guarantees every
// user-initiated mutation is either executed against the remote or
// durably recorded in the cache store's pending-op log for later replay.
// The CLI write path goes through Dispatch; the reconciliation loop's
// drain goes through Drain.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/types"
)

// Result is the outcome of one write attempt: either the remote call
// succeeded (Queued false) or it failed network-class and was durably
// queued (Queued true). Any other failure is returned as an error.
type Result struct {
	Queued      bool
	IssueNumber *uint64
	Elapsed     time.Duration
}

// Dispatch attempts the remote call described by (kind, payload) and, on
// a network-class failure, records it as a pending op instead.
// Non-network failures surface verbatim and queue nothing.
func Dispatch(ctx context.Context, st *store.Store, cap forge.Capability, remoteID string, kind types.OpKind, payload []byte) (Result, error) {
	start := time.Now()
	issue, err := execute(ctx, cap, remoteID, kind, payload)
	if err == nil {
		res := Result{Elapsed: time.Since(start)}
		if issue != nil {
			res.IssueNumber = &issue.Number
		}
		return res, nil
	}
	if !ferrors.IsNetworkClass(err) {
		return Result{Elapsed: time.Since(start)}, err
	}

	if _, qerr := st.QueueOp(ctx, remoteID, kind, payload); qerr != nil {
		return Result{Elapsed: time.Since(start)}, fmt.Errorf("queue after %v: %w", err, qerr)
	}
	return Result{Queued: true, Elapsed: time.Since(start)}, nil
}

// Drain replays remoteID's pending ops in insertion order. Success and
// conflict-class failure both complete the op (on conflict the remote's
// current state wins and the op is logged and discarded); any other
// failure stops the drain so the remaining ops keep their order for the
// next cycle.
func Drain(ctx context.Context, st *store.Store, cap forge.Capability, remoteID string, logger *slog.Logger) error {
	ops, err := st.LoadPendingOps(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("drain %s: %w", remoteID, err)
	}

	for _, op := range ops {
		_, err := execute(ctx, cap, remoteID, op.OpKind, op.Payload)
		switch {
		case err == nil:
			if err := st.CompleteOp(ctx, op.ID); err != nil {
				return fmt.Errorf("complete op %d: %w", op.ID, err)
			}
			logger.Info("replayed pending op", "op", DescribeOp(op))
		case ferrors.IsConflictClass(err):
			if err := st.CompleteOp(ctx, op.ID); err != nil {
				return fmt.Errorf("discard op %d: %w", op.ID, err)
			}
			logger.Warn("discarded conflicting op, remote state wins", "op", DescribeOp(op), "error", err)
		default:
			return fmt.Errorf("replay %s: %w", DescribeOp(op), err)
		}
	}
	return nil
}

// execute reconstructs the forge call from op_kind + payload and invokes
// it. Returns the created issue for OpCreate so callers can report its
// number; every other kind returns nil.
func execute(ctx context.Context, cap forge.Capability, remoteID string, kind types.OpKind, payload []byte) (*types.Issue, error) {
	switch kind {
	case types.OpCreate:
		var req types.CreateIssueRequest
		if err := unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return cap.CreateIssue(ctx, remoteID, req)
	case types.OpComment:
		var p CommentPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.CreateComment(ctx, remoteID, p.Number, p.Body)
	case types.OpClose:
		var p NumberPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.CloseIssue(ctx, remoteID, p.Number)
	case types.OpReopen:
		var p NumberPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.ReopenIssue(ctx, remoteID, p.Number)
	case types.OpLabelAdd:
		var p LabelPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.AddLabel(ctx, remoteID, p.Number, p.Label)
	case types.OpLabelRemove:
		var p LabelPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.RemoveLabel(ctx, remoteID, p.Number, p.Label)
	case types.OpAssign:
		var p AssignPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.AssignIssue(ctx, remoteID, p.Number, p.User)
	case types.OpCreateGoal:
		var req types.CreateGoalRequest
		if err := unmarshal(payload, &req); err != nil {
			return nil, err
		}
		_, err := cap.CreateGoal(ctx, remoteID, req)
		return nil, err
	case types.OpAssignGoal:
		var p AssignGoalPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.AssignToGoal(ctx, remoteID, p.Number, p.GoalID)
	case types.OpCloseGoal:
		var p CloseGoalPayload
		if err := unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return nil, cap.CloseGoal(ctx, remoteID, p.GoalID)
	default:
		return nil, fmt.Errorf("unknown op kind %q", kind)
	}
}

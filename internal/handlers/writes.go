package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/queue"
	"github.com/forgesync/frg/internal/types"
)

// WriteResult is the uniform outcome every write verb reports, and the
// exact shape `--json` writes emit.
type WriteResult struct {
	Success     bool    `json:"success"`
	Queued      bool    `json:"queued"`
	IssueNumber *uint64 `json:"issue_number"`
	Message     string  `json:"message"`
	ElapsedMS   int64   `json:"elapsed_ms"`
}

// writeOp runs one mutation through the queue's write path: remote call
// first, durable queue on network-class failure, verbatim error
// otherwise.
func (h *Handler) writeOp(ctx context.Context, cwd string, kind types.OpKind, payload any, action string) (*WriteResult, error) {
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return nil, err
	}
	cap, err := h.resolveForge(src)
	if err != nil {
		return nil, err
	}

	data, err := queue.Marshal(payload)
	if err != nil {
		return nil, err
	}

	res, err := queue.Dispatch(ctx, h.Store, cap, src.RemoteID, kind, data)
	if err != nil {
		return nil, err
	}
	return h.report(res, action), nil
}

func (h *Handler) report(res queue.Result, action string) *WriteResult {
	out := &WriteResult{
		Success:     true,
		Queued:      res.Queued,
		IssueNumber: res.IssueNumber,
		ElapsedMS:   res.Elapsed.Milliseconds(),
	}
	if res.Queued {
		out.Message = fmt.Sprintf("Queued: %s (offline, %dms)", action, out.ElapsedMS)
	} else {
		out.Message = fmt.Sprintf("%s (%dms)", action, out.ElapsedMS)
	}
	return out
}

// IssueCreate backs `issue create`.
func (h *Handler) IssueCreate(ctx context.Context, cwd string, req types.CreateIssueRequest) (*WriteResult, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("issue title is required")
	}
	return h.writeOp(ctx, cwd, types.OpCreate, req, fmt.Sprintf("Created issue %q", req.Title))
}

// IssueComment backs `issue comment`.
func (h *Handler) IssueComment(ctx context.Context, cwd string, number uint64, body string) (*WriteResult, error) {
	return h.writeOp(ctx, cwd, types.OpComment, queue.CommentPayload{Number: number, Body: body},
		fmt.Sprintf("Commented on #%d", number))
}

// IssueClose backs `issue close`.
func (h *Handler) IssueClose(ctx context.Context, cwd string, number uint64) (*WriteResult, error) {
	return h.writeOp(ctx, cwd, types.OpClose, queue.NumberPayload{Number: number},
		fmt.Sprintf("Closed #%d", number))
}

// IssueReopen backs `issue reopen`.
func (h *Handler) IssueReopen(ctx context.Context, cwd string, number uint64) (*WriteResult, error) {
	return h.writeOp(ctx, cwd, types.OpReopen, queue.NumberPayload{Number: number},
		fmt.Sprintf("Reopened #%d", number))
}

// IssueLabelAdd backs `issue label add`.
func (h *Handler) IssueLabelAdd(ctx context.Context, cwd string, number uint64, label string) (*WriteResult, error) {
	return h.writeOp(ctx, cwd, types.OpLabelAdd, queue.LabelPayload{Number: number, Label: label},
		fmt.Sprintf("Added label %q to #%d", label, number))
}

// IssueLabelRemove backs `issue label remove`.
func (h *Handler) IssueLabelRemove(ctx context.Context, cwd string, number uint64, label string) (*WriteResult, error) {
	return h.writeOp(ctx, cwd, types.OpLabelRemove, queue.LabelPayload{Number: number, Label: label},
		fmt.Sprintf("Removed label %q from #%d", label, number))
}

// IssueAssign backs `issue assign`.
func (h *Handler) IssueAssign(ctx context.Context, cwd string, number uint64, user string) (*WriteResult, error) {
	return h.writeOp(ctx, cwd, types.OpAssign, queue.AssignPayload{Number: number, User: user},
		fmt.Sprintf("Assigned #%d to %s", number, user))
}

// GoalCreate backs `goal create`. On a live remote the created goal is
// upserted into the cache immediately so `goal show` works before the
// next full sync.
func (h *Handler) GoalCreate(ctx context.Context, cwd string, req types.CreateGoalRequest) (*WriteResult, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("goal name is required")
	}
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return nil, err
	}
	cap, err := h.resolveForge(src)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	goal, err := cap.CreateGoal(ctx, src.RemoteID, req)
	if err == nil {
		if err := h.Store.SaveGoal(ctx, src.RemoteID, *goal); err != nil {
			return nil, err
		}
		return h.report(queue.Result{Elapsed: time.Since(start)}, fmt.Sprintf("Created goal %q", req.Name)), nil
	}
	if !ferrors.IsNetworkClass(err) {
		return nil, err
	}

	data, merr := queue.Marshal(req)
	if merr != nil {
		return nil, merr
	}
	if _, qerr := h.Store.QueueOp(ctx, src.RemoteID, types.OpCreateGoal, data); qerr != nil {
		return nil, fmt.Errorf("queue after %v: %w", err, qerr)
	}
	return h.report(queue.Result{Queued: true, Elapsed: time.Since(start)}, fmt.Sprintf("Created goal %q", req.Name)), nil
}

// GoalAssign backs `goal assign <name> <number>`: the goal id is
// resolved from the cache by name, so the goal must have synced at least
// once.
func (h *Handler) GoalAssign(ctx context.Context, cwd, name string, number uint64) (*WriteResult, error) {
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return nil, err
	}
	goal, err := h.Store.LoadGoalByName(ctx, src.RemoteID, name)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("goal %q not in cache for %s (try `frg sync`): %w", name, src.RemoteID, err)
		}
		return nil, err
	}
	return h.writeOp(ctx, cwd, types.OpAssignGoal, queue.AssignGoalPayload{Number: number, GoalID: goal.ID},
		fmt.Sprintf("Assigned #%d to goal %q", number, name))
}

// GoalClose backs `goal close <name>`.
func (h *Handler) GoalClose(ctx context.Context, cwd, name string) (*WriteResult, error) {
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return nil, err
	}
	goal, err := h.Store.LoadGoalByName(ctx, src.RemoteID, name)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("goal %q not in cache for %s (try `frg sync`): %w", name, src.RemoteID, err)
		}
		return nil, err
	}
	return h.writeOp(ctx, cwd, types.OpCloseGoal, queue.CloseGoalPayload{GoalID: goal.ID},
		fmt.Sprintf("Closed goal %q", name))
}

// ParseTargetDate turns a `--target` flag value into a timestamp. It
// accepts RFC-3339, a plain date, or natural language ("next friday").
func ParseTargetDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, time.Now())
	if err != nil || r == nil {
		return nil, fmt.Errorf("cannot parse target date %q", s)
	}
	return &r.Time, nil
}

package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/forgesync/frg/internal/types"
)

// IssueList serves `issue list` from the cache, filtered by label
// substring and exact state.
func (h *Handler) IssueList(ctx context.Context, cwd, label, state string) ([]types.Issue, error) {
	src, err := h.prepareRead(ctx, cwd)
	if err != nil {
		return nil, err
	}
	return h.Store.LoadIssuesFiltered(ctx, src.RemoteID, label, state)
}

// IssueDetail is `issue show`'s shape: the issue plus its cached
// comments.
type IssueDetail struct {
	Issue    types.Issue     `json:"issue"`
	Comments []types.Comment `json:"comments"`
}

// IssueShow serves `issue show <number>` from the cache.
func (h *Handler) IssueShow(ctx context.Context, cwd string, number uint64) (*IssueDetail, error) {
	src, err := h.prepareRead(ctx, cwd)
	if err != nil {
		return nil, err
	}

	issue, err := h.Store.LoadIssue(ctx, src.RemoteID, number)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("issue %d not in cache for %s (try `frg sync`): %w", number, src.RemoteID, err)
		}
		return nil, err
	}
	comments, err := h.Store.LoadComments(ctx, src.RemoteID, number)
	if err != nil {
		return nil, err
	}
	return &IssueDetail{Issue: *issue, Comments: comments}, nil
}

// GoalList serves `goal list` from the cache, optionally filtered by
// state.
func (h *Handler) GoalList(ctx context.Context, cwd, state string) ([]types.Goal, error) {
	src, err := h.prepareRead(ctx, cwd)
	if err != nil {
		return nil, err
	}
	return h.Store.LoadGoals(ctx, src.RemoteID, state)
}

// GoalDetail is `goal show`'s shape: the goal plus the cached issues
// assigned to it.
type GoalDetail struct {
	Goal   types.Goal    `json:"goal"`
	Issues []types.Issue `json:"issues"`
}

// GoalShow serves `goal show <name>` from the cache.
func (h *Handler) GoalShow(ctx context.Context, cwd, name string) (*GoalDetail, error) {
	src, err := h.prepareRead(ctx, cwd)
	if err != nil {
		return nil, err
	}

	goal, err := h.Store.LoadGoalByName(ctx, src.RemoteID, name)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("goal %q not in cache for %s: %w", name, src.RemoteID, err)
		}
		return nil, err
	}

	all, err := h.Store.LoadIssuesFiltered(ctx, src.RemoteID, "", "")
	if err != nil {
		return nil, err
	}
	var assigned []types.Issue
	for _, issue := range all {
		if issue.GoalName == goal.Name {
			assigned = append(assigned, issue)
		}
	}
	return &GoalDetail{Goal: *goal, Issues: assigned}, nil
}

// Sync runs one synchronous SYNC for the current source, for the `sync`
// verb.
func (h *Handler) Sync(ctx context.Context, cwd string) (*types.SyncState, error) {
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return nil, err
	}
	if err := h.syncer().SyncSource(ctx, *src); err != nil {
		return nil, err
	}
	if err := h.Store.Touch(ctx, src.LocalPath, time.Now()); err != nil {
		return nil, err
	}
	return h.Store.GetSyncState(ctx, src.RemoteID)
}

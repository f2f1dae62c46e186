package graphql

import (
	"math"
	"time"

	"github.com/forgesync/frg/internal/types"
)

// floatToNumber converts the remote's floating-point issue number to the
// unsigned integer representation used everywhere else in the system.
func floatToNumber(f float64) uint64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return uint64(math.Round(f))
}

// mapStateType folds the remote's five workflow state types into the
// uniform open/closed pair: completed and canceled are closed, everything
// else is open.
func mapStateType(stateType string) types.IssueState {
	switch stateType {
	case stateTypeCompleted, stateTypeCanceled:
		return types.IssueClosed
	default:
		return types.IssueOpen
	}
}

func userName(u *wireUser) string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func mapIssue(w wireIssue) types.Issue {
	issue := types.Issue{
		Number: floatToNumber(w.Number),
		Title:  w.Title,
		Body:   w.Description,
		State:  mapStateType(w.State.Type),
		Author: userName(w.Creator),
		URL:    w.URL,
	}
	for _, l := range w.Labels.Nodes {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if w.Project != nil {
		issue.GoalName = w.Project.Name
	}
	if w.CreatedAt != nil {
		issue.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		issue.UpdatedAt = *w.UpdatedAt
	}
	return issue
}

func mapComment(w wireComment, issueNumber uint64) types.Comment {
	c := types.Comment{
		CommentID:   w.ID,
		IssueNumber: issueNumber,
		Body:        w.Body,
		Author:      userName(w.User),
	}
	if w.CreatedAt != nil {
		c.CreatedAt = *w.CreatedAt
	}
	return c
}

// mapProject converts a project into a goal, deriving progress and the
// open/closed counts from the project's own issue set.
func mapProject(w wireProject) types.Goal {
	g := types.Goal{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		State:       types.IssueOpen,
		URL:         w.URL,
	}
	switch w.State {
	case stateTypeCompleted, stateTypeCanceled:
		g.State = types.IssueClosed
	}
	if w.TargetDate != "" {
		if t, err := time.Parse("2006-01-02", w.TargetDate); err == nil {
			g.TargetDate = &t
		}
	}
	if w.CreatedAt != nil {
		g.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		g.UpdatedAt = *w.UpdatedAt
	}

	open, closed := 0, 0
	for _, issue := range w.Issues.Nodes {
		if mapStateType(issue.State.Type) == types.IssueClosed {
			closed++
		} else {
			open++
		}
	}
	g.OpenCount = &open
	g.ClosedCount = &closed
	if total := open + closed; total > 0 {
		g.Progress = float64(closed) / float64(total)
	}
	return g
}

package rest

import (
	"strconv"

	"github.com/forgesync/frg/internal/types"
)

func mapIssue(w wireIssue) types.Issue {
	issue := types.Issue{
		Number: w.Number,
		Title:  w.Title,
		Body:   w.Body,
		State:  types.IssueOpen,
		URL:    w.HTMLURL,
	}
	if w.State == "closed" {
		issue.State = types.IssueClosed
	}
	if w.User != nil {
		issue.Author = w.User.Login
	}
	for _, l := range w.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if w.CreatedAt != nil {
		issue.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		issue.UpdatedAt = *w.UpdatedAt
	}
	return issue
}

func mapComment(w wireComment) (types.Comment, error) {
	number, err := lastPathSegment(w.IssueURL)
	if err != nil {
		return types.Comment{}, err
	}
	c := types.Comment{
		CommentID:   formatInt(w.ID),
		IssueNumber: number,
		Body:        w.Body,
	}
	if w.User != nil {
		c.Author = w.User.Login
	}
	if w.CreatedAt != nil {
		c.CreatedAt = *w.CreatedAt
	}
	return c, nil
}

func mapMilestone(w wireMilestone) types.Goal {
	g := types.Goal{
		ID:    formatInt(w.ID),
		Name:  w.Title,
		Description: w.Description,
		State: types.IssueOpen,
		URL:   w.HTMLURL,
	}
	if w.State == "closed" {
		g.State = types.IssueClosed
	}
	if w.DueOn != nil {
		g.TargetDate = w.DueOn
	}
	if w.CreatedAt != nil {
		g.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		g.UpdatedAt = *w.UpdatedAt
	}
	open, closed := w.OpenIssues, w.ClosedIssues
	g.OpenCount = &open
	g.ClosedCount = &closed
	total := open + closed
	if total > 0 {
		g.Progress = float64(closed) / float64(total)
	}
	return g
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

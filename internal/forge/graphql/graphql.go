// Package graphql is the GraphQL-forge backend: a single-query client
// against a Linear-style API. Reads decode nested selections straight
// into the uniform shapes; close/reopen first look up the target
// workflow-state id by type.
//
// container is always a "team-key/team-id" remote_id; the backend
// addresses the remote by the team id (the second part).
package graphql

import (
	"context"
	"fmt"

	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/types"
)

func init() {
	forge.Register(types.KindGraphQL, func(token string) forge.Capability {
		return newBackend(token)
	})
}

// Backend implements forge.Capability over the GraphQL client.
type Backend struct {
	c *client
}

func newBackend(token string) *Backend {
	return &Backend{c: newClient(token)}
}

var _ forge.Capability = (*Backend)(nil)

func teamID(container string) (string, error) {
	_, id, err := types.ParseRemoteID(container)
	if err != nil {
		return "", fmt.Errorf("graphql container: %w", err)
	}
	return id, nil
}

// ListIssues fetches the team's full issue set, following cursors until
// the remote reports no next page.
func (b *Backend) ListIssues(ctx context.Context, container string) ([]types.Issue, error) {
	id, err := teamID(container)
	if err != nil {
		return nil, err
	}

	var all []types.Issue
	var cursor *string
	for {
		vars := map[string]any{"teamId": id}
		if cursor != nil {
			vars["after"] = *cursor
		}

		var result struct {
			Team struct {
				Issues struct {
					PageInfo pageInfo    `json:"pageInfo"`
					Nodes    []wireIssue `json:"nodes"`
				} `json:"issues"`
			} `json:"team"`
		}
		if err := b.c.query(ctx, queryTeamIssues, vars, &result); err != nil {
			return nil, fmt.Errorf("list issues: %w", err)
		}

		for _, w := range result.Team.Issues.Nodes {
			all = append(all, mapIssue(w))
		}
		if !result.Team.Issues.PageInfo.HasNextPage {
			break
		}
		cursor = &result.Team.Issues.PageInfo.EndCursor
	}
	return all, nil
}

func (b *Backend) GetIssue(ctx context.Context, container string, number uint64) (*types.Issue, error) {
	w, err := b.findIssue(ctx, container, number)
	if err != nil {
		return nil, err
	}
	issue := mapIssue(*w)
	return &issue, nil
}

// findIssue resolves an issue by its team-scoped number. The remote has
// no by-number lookup, so this filters the team's issue set server-side.
func (b *Backend) findIssue(ctx context.Context, container string, number uint64) (*wireIssue, error) {
	id, err := teamID(container)
	if err != nil {
		return nil, err
	}

	var result struct {
		Issues struct {
			Nodes []wireIssue `json:"nodes"`
		} `json:"issues"`
	}
	vars := map[string]any{"teamId": id, "number": float64(number)}
	if err := b.c.query(ctx, queryIssueByNumber, vars, &result); err != nil {
		return nil, fmt.Errorf("get issue %d: %w", number, err)
	}
	if len(result.Issues.Nodes) == 0 {
		return nil, fmt.Errorf("get issue %d: 404 not found in team %s", number, id)
	}
	return &result.Issues.Nodes[0], nil
}

// ListAllComments walks the team's issues and flattens each issue's
// nested comment connection into the uniform Comment shape.
func (b *Backend) ListAllComments(ctx context.Context, container string) ([]types.Comment, error) {
	id, err := teamID(container)
	if err != nil {
		return nil, err
	}

	var all []types.Comment
	var cursor *string
	for {
		vars := map[string]any{"teamId": id}
		if cursor != nil {
			vars["after"] = *cursor
		}

		var result struct {
			Team struct {
				Issues struct {
					PageInfo pageInfo `json:"pageInfo"`
					Nodes    []struct {
						Number   float64 `json:"number"`
						Comments struct {
							Nodes []wireComment `json:"nodes"`
						} `json:"comments"`
					} `json:"nodes"`
				} `json:"issues"`
			} `json:"team"`
		}
		if err := b.c.query(ctx, queryTeamComments, vars, &result); err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}

		for _, issue := range result.Team.Issues.Nodes {
			number := floatToNumber(issue.Number)
			for _, w := range issue.Comments.Nodes {
				all = append(all, mapComment(w, number))
			}
		}
		if !result.Team.Issues.PageInfo.HasNextPage {
			break
		}
		cursor = &result.Team.Issues.PageInfo.EndCursor
	}
	return all, nil
}

// ListGoals maps the team's projects to goals. Progress and open/closed
// counts derive from aggregating each project's issue set, since the
// remote exposes no precomputed counts on the project itself.
func (b *Backend) ListGoals(ctx context.Context, container string) ([]types.Goal, error) {
	id, err := teamID(container)
	if err != nil {
		return nil, err
	}

	var result struct {
		Team struct {
			Projects struct {
				Nodes []wireProject `json:"nodes"`
			} `json:"projects"`
		} `json:"team"`
	}
	if err := b.c.query(ctx, queryTeamProjects, map[string]any{"teamId": id}, &result); err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	goals := make([]types.Goal, 0, len(result.Team.Projects.Nodes))
	for _, w := range result.Team.Projects.Nodes {
		goals = append(goals, mapProject(w))
	}
	return goals, nil
}

func (b *Backend) CreateIssue(ctx context.Context, container string, req types.CreateIssueRequest) (*types.Issue, error) {
	id, err := teamID(container)
	if err != nil {
		return nil, err
	}

	input := map[string]any{"teamId": id, "title": req.Title}
	if req.Body != "" {
		input["description"] = req.Body
	}
	if len(req.Labels) > 0 {
		labelIDs, err := b.resolveLabelIDs(ctx, id, req.Labels)
		if err != nil {
			return nil, fmt.Errorf("create issue: %w", err)
		}
		input["labelIds"] = labelIDs
	}

	var result struct {
		IssueCreate struct {
			Success bool      `json:"success"`
			Issue   wireIssue `json:"issue"`
		} `json:"issueCreate"`
	}
	if err := b.c.query(ctx, mutationIssueCreate, map[string]any{"input": input}, &result); err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	if !result.IssueCreate.Success {
		return nil, fmt.Errorf("create issue: remote reported failure")
	}
	issue := mapIssue(result.IssueCreate.Issue)
	return &issue, nil
}

func (b *Backend) CreateComment(ctx context.Context, container string, number uint64, body string) error {
	w, err := b.findIssue(ctx, container, number)
	if err != nil {
		return err
	}

	var result struct {
		CommentCreate struct {
			Success bool `json:"success"`
		} `json:"commentCreate"`
	}
	input := map[string]any{"issueId": w.ID, "body": body}
	if err := b.c.query(ctx, mutationCommentCreate, map[string]any{"input": input}, &result); err != nil {
		return fmt.Errorf("create comment on issue %d: %w", number, err)
	}
	if !result.CommentCreate.Success {
		return fmt.Errorf("create comment on issue %d: remote reported failure", number)
	}
	return nil
}

// CloseIssue moves the issue to the team's "completed" workflow state.
func (b *Backend) CloseIssue(ctx context.Context, container string, number uint64) error {
	return b.transitionIssue(ctx, container, number, []string{stateTypeCompleted})
}

// ReopenIssue moves the issue back to an open workflow state, trying
// backlog, then unstarted, then started. Workspaces with fully custom
// workflows may lack all three, in which case the transition fails.
func (b *Backend) ReopenIssue(ctx context.Context, container string, number uint64) error {
	return b.transitionIssue(ctx, container, number, []string{stateTypeBacklog, stateTypeUnstarted, stateTypeStarted})
}

func (b *Backend) transitionIssue(ctx context.Context, container string, number uint64, stateTypes []string) error {
	id, err := teamID(container)
	if err != nil {
		return err
	}
	stateID, err := b.findStateID(ctx, id, stateTypes)
	if err != nil {
		return fmt.Errorf("transition issue %d: %w", number, err)
	}
	w, err := b.findIssue(ctx, container, number)
	if err != nil {
		return err
	}
	return b.updateIssue(ctx, w.ID, map[string]any{"stateId": stateID})
}

// findStateID looks up the id of the first workflow state whose type
// matches the fallback chain, in chain order. The chain is closed: a
// workspace missing every candidate type surfaces the failure rather
// than guessing at a fourth state.
func (b *Backend) findStateID(ctx context.Context, teamID string, stateTypes []string) (string, error) {
	var result struct {
		Team struct {
			States struct {
				Nodes []wireState `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}
	if err := b.c.query(ctx, queryTeamStates, map[string]any{"teamId": teamID}, &result); err != nil {
		return "", err
	}

	for _, want := range stateTypes {
		for _, s := range result.Team.States.Nodes {
			if s.Type == want {
				return s.ID, nil
			}
		}
	}
	return "", fmt.Errorf("no workflow state of type %v in team %s", stateTypes, teamID)
}

func (b *Backend) updateIssue(ctx context.Context, issueID string, input map[string]any) error {
	var result struct {
		IssueUpdate struct {
			Success bool `json:"success"`
		} `json:"issueUpdate"`
	}
	vars := map[string]any{"id": issueID, "input": input}
	if err := b.c.query(ctx, mutationIssueUpdate, vars, &result); err != nil {
		return err
	}
	if !result.IssueUpdate.Success {
		return fmt.Errorf("update issue %s: remote reported failure", issueID)
	}
	return nil
}

func (b *Backend) AddLabel(ctx context.Context, container string, number uint64, label string) error {
	return b.mutateLabels(ctx, container, number, label, true)
}

func (b *Backend) RemoveLabel(ctx context.Context, container string, number uint64, label string) error {
	return b.mutateLabels(ctx, container, number, label, false)
}

func (b *Backend) mutateLabels(ctx context.Context, container string, number uint64, label string, add bool) error {
	id, err := teamID(container)
	if err != nil {
		return err
	}
	w, err := b.findIssue(ctx, container, number)
	if err != nil {
		return err
	}

	labelIDs := make([]string, 0, len(w.Labels.Nodes)+1)
	for _, l := range w.Labels.Nodes {
		if !add && l.Name == label {
			continue
		}
		labelIDs = append(labelIDs, l.ID)
	}
	if add {
		resolved, err := b.resolveLabelIDs(ctx, id, []string{label})
		if err != nil {
			return fmt.Errorf("add label %q: %w", label, err)
		}
		labelIDs = append(labelIDs, resolved...)
	}
	return b.updateIssue(ctx, w.ID, map[string]any{"labelIds": labelIDs})
}

// resolveLabelIDs maps label names to remote label ids within one team.
func (b *Backend) resolveLabelIDs(ctx context.Context, teamID string, names []string) ([]string, error) {
	var result struct {
		Team struct {
			Labels struct {
				Nodes []wireLabel `json:"nodes"`
			} `json:"labels"`
		} `json:"team"`
	}
	if err := b.c.query(ctx, queryTeamLabels, map[string]any{"teamId": teamID}, &result); err != nil {
		return nil, err
	}

	byName := make(map[string]string, len(result.Team.Labels.Nodes))
	for _, l := range result.Team.Labels.Nodes {
		byName[l.Name] = l.ID
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("label %q: 404 not found in team %s", name, teamID)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *Backend) AssignIssue(ctx context.Context, container string, number uint64, user string) error {
	w, err := b.findIssue(ctx, container, number)
	if err != nil {
		return err
	}

	var result struct {
		Users struct {
			Nodes []wireUser `json:"nodes"`
		} `json:"users"`
	}
	if err := b.c.query(ctx, queryUserByName, map[string]any{"name": user}, &result); err != nil {
		return fmt.Errorf("assign issue %d: %w", number, err)
	}
	if len(result.Users.Nodes) == 0 {
		return fmt.Errorf("assign issue %d: user %q: 404 not found", number, user)
	}
	return b.updateIssue(ctx, w.ID, map[string]any{"assigneeId": result.Users.Nodes[0].ID})
}

func (b *Backend) CreateGoal(ctx context.Context, container string, req types.CreateGoalRequest) (*types.Goal, error) {
	id, err := teamID(container)
	if err != nil {
		return nil, err
	}

	input := map[string]any{"teamIds": []string{id}, "name": req.Name}
	if req.Description != "" {
		input["description"] = req.Description
	}
	if req.TargetDate != nil {
		input["targetDate"] = req.TargetDate.Format("2006-01-02")
	}

	var result struct {
		ProjectCreate struct {
			Success bool        `json:"success"`
			Project wireProject `json:"project"`
		} `json:"projectCreate"`
	}
	if err := b.c.query(ctx, mutationProjectCreate, map[string]any{"input": input}, &result); err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	if !result.ProjectCreate.Success {
		return nil, fmt.Errorf("create goal: remote reported failure")
	}
	goal := mapProject(result.ProjectCreate.Project)
	return &goal, nil
}

func (b *Backend) CloseGoal(ctx context.Context, container string, goalID string) error {
	var result struct {
		ProjectUpdate struct {
			Success bool `json:"success"`
		} `json:"projectUpdate"`
	}
	vars := map[string]any{"id": goalID, "input": map[string]any{"state": stateTypeCompleted}}
	if err := b.c.query(ctx, mutationProjectUpdate, vars, &result); err != nil {
		return fmt.Errorf("close goal %s: %w", goalID, err)
	}
	if !result.ProjectUpdate.Success {
		return fmt.Errorf("close goal %s: remote reported failure", goalID)
	}
	return nil
}

func (b *Backend) AssignToGoal(ctx context.Context, container string, number uint64, goalID string) error {
	w, err := b.findIssue(ctx, container, number)
	if err != nil {
		return err
	}
	return b.updateIssue(ctx, w.ID, map[string]any{"projectId": goalID})
}

func (b *Backend) GetUser(ctx context.Context) (string, error) {
	var result struct {
		Viewer wireUser `json:"viewer"`
	}
	if err := b.c.query(ctx, queryViewer, nil, &result); err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	if result.Viewer.DisplayName != "" {
		return result.Viewer.DisplayName, nil
	}
	return result.Viewer.Name, nil
}

// GetRateLimit reports the budget observed on the most recent response's
// rate-limit headers. Nil until at least one request has been made: this
// backend has no dedicated budget endpoint.
func (b *Backend) GetRateLimit(ctx context.Context) (*types.RateLimitInfo, error) {
	return b.c.lastRateLimit(), nil
}

package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/ratelimit"
	"github.com/forgesync/frg/internal/types"
)

// sharedPermit and sharedSpacer back every REST-forge Backend built in
// this process: the remote's secondary limits apply per token-holder,
// not per client value, so every Backend threads the same pair by
// pointer.
var (
	sharedOnce    sync.Once
	sharedPermit  *ratelimit.ReadPermit
	sharedSpacer  *ratelimit.WriteSpacer
)

func sharedGovernors() (*ratelimit.ReadPermit, *ratelimit.WriteSpacer) {
	sharedOnce.Do(func() {
		sharedPermit = ratelimit.NewReadPermit(ratelimit.DefaultReadPermits)
		sharedSpacer = &ratelimit.WriteSpacer{}
	})
	return sharedPermit, sharedSpacer
}

func init() {
	forge.Register(types.KindREST, func(token string) forge.Capability {
		return newBackend(token)
	})
}

// Backend implements forge.Capability against a GitHub-style REST API.
// container is always an "owner/repo" remote_id.
type Backend struct {
	c *client
}

func newBackend(token string) *Backend {
	permit, spacer := sharedGovernors()
	return &Backend{c: &client{
		token:   token,
		baseURL: DefaultAPIEndpoint,
		http:    &http.Client{Timeout: DefaultTimeout},
		permit:  permit,
		spacer:  spacer,
	}}
}

var _ forge.Capability = (*Backend)(nil)

// ListIssues fetches a container's issues by parallel page requests: a
// search query with per_page=1 reads the total count, then
// ceil(total/100) page requests run concurrently bounded by the shared
// read permit.
func (b *Backend) ListIssues(ctx context.Context, container string) ([]types.Issue, error) {
	total, err := b.searchTotalCount(ctx, container)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	pages := int(math.Ceil(float64(total) / float64(MaxPageSize)))

	results := make([][]types.Issue, pages)
	g, gctx := errgroup.WithContext(ctx)
	for page := 1; page <= pages; page++ {
		page := page
		g.Go(func() error {
			issues, err := b.fetchIssuePage(gctx, container, page)
			if err != nil {
				return err
			}
			results[page-1] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}

	var all []types.Issue
	for _, page := range results {
		all = append(all, page...)
	}
	return all, nil
}

func (b *Backend) searchTotalCount(ctx context.Context, container string) (int, error) {
	urlStr := b.c.buildURL("/search/issues", map[string]string{
		"q":        "repo:" + container + " type:issue",
		"per_page": "1",
	})
	body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
	if err != nil {
		return 0, err
	}
	var res searchResult
	if err := json.Unmarshal(body, &res); err != nil {
		return 0, fmt.Errorf("parse search result: %w", err)
	}
	return res.TotalCount, nil
}

func (b *Backend) fetchIssuePage(ctx context.Context, container string, page int) ([]types.Issue, error) {
	urlStr := b.c.buildURL("/repos/"+container+"/issues", map[string]string{
		"per_page": strconv.Itoa(MaxPageSize),
		"page":     strconv.Itoa(page),
		"state":    "all",
	})
	body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
	if err != nil {
		return nil, err
	}
	var wire []wireIssue
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse issues page %d: %w", page, err)
	}
	issues := make([]types.Issue, 0, len(wire))
	for _, w := range wire {
		if w.PullReq != nil {
			continue
		}
		issues = append(issues, mapIssue(w))
	}
	return issues, nil
}

func (b *Backend) GetIssue(ctx context.Context, container string, number uint64) (*types.Issue, error) {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d", container, number), nil)
	body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", number, err)
	}
	var w wireIssue
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("parse issue %d: %w", number, err)
	}
	issue := mapIssue(w)
	return &issue, nil
}

// ListAllComments pages the repo-wide comments endpoint until an empty
// page returns, recovering each comment's issue number by parsing the
// last path segment of its issue_url.
func (b *Backend) ListAllComments(ctx context.Context, container string) ([]types.Comment, error) {
	var all []types.Comment
	for page := 1; ; page++ {
		urlStr := b.c.buildURL("/repos/"+container+"/issues/comments", map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		})
		body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
		if err != nil {
			return nil, fmt.Errorf("list comments page %d: %w", page, err)
		}
		var wire []wireComment
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, fmt.Errorf("parse comments page %d: %w", page, err)
		}
		if len(wire) == 0 {
			break
		}
		for _, w := range wire {
			c, err := mapComment(w)
			if err != nil {
				continue
			}
			all = append(all, c)
		}
	}
	return all, nil
}

func (b *Backend) ListGoals(ctx context.Context, container string) ([]types.Goal, error) {
	urlStr := b.c.buildURL("/repos/"+container+"/milestones", map[string]string{
		"state":    "all",
		"per_page": strconv.Itoa(MaxPageSize),
	})
	body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	var wire []wireMilestone
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse milestones: %w", err)
	}
	goals := make([]types.Goal, 0, len(wire))
	for _, w := range wire {
		goals = append(goals, mapMilestone(w))
	}
	return goals, nil
}

func (b *Backend) CreateIssue(ctx context.Context, container string, req types.CreateIssueRequest) (*types.Issue, error) {
	payload := map[string]any{"title": req.Title, "body": req.Body}
	if len(req.Labels) > 0 {
		payload["labels"] = req.Labels
	}
	urlStr := b.c.buildURL("/repos/"+container+"/issues", nil)
	body, _, err := b.c.request(ctx, http.MethodPost, urlStr, payload, true)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	var w wireIssue
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("parse created issue: %w", err)
	}
	issue := mapIssue(w)
	return &issue, nil
}

func (b *Backend) CreateComment(ctx context.Context, container string, number uint64, body string) error {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d/comments", container, number), nil)
	_, _, err := b.c.request(ctx, http.MethodPost, urlStr, map[string]string{"body": body}, true)
	if err != nil {
		return fmt.Errorf("create comment on issue %d: %w", number, err)
	}
	return nil
}

func (b *Backend) CloseIssue(ctx context.Context, container string, number uint64) error {
	return b.patchIssueState(ctx, container, number, "closed")
}

func (b *Backend) ReopenIssue(ctx context.Context, container string, number uint64) error {
	return b.patchIssueState(ctx, container, number, "open")
}

func (b *Backend) patchIssueState(ctx context.Context, container string, number uint64, state string) error {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d", container, number), nil)
	_, _, err := b.c.request(ctx, http.MethodPatch, urlStr, map[string]string{"state": state}, true)
	if err != nil {
		return fmt.Errorf("set issue %d state %s: %w", number, state, err)
	}
	return nil
}

func (b *Backend) AddLabel(ctx context.Context, container string, number uint64, label string) error {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d/labels", container, number), nil)
	_, _, err := b.c.request(ctx, http.MethodPost, urlStr, map[string][]string{"labels": {label}}, true)
	if err != nil {
		return fmt.Errorf("add label %q to issue %d: %w", label, number, err)
	}
	return nil
}

func (b *Backend) RemoveLabel(ctx context.Context, container string, number uint64, label string) error {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d/labels/%s", container, number, label), nil)
	_, _, err := b.c.request(ctx, http.MethodDelete, urlStr, nil, true)
	if err != nil {
		return fmt.Errorf("remove label %q from issue %d: %w", label, number, err)
	}
	return nil
}

func (b *Backend) AssignIssue(ctx context.Context, container string, number uint64, user string) error {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d/assignees", container, number), nil)
	_, _, err := b.c.request(ctx, http.MethodPost, urlStr, map[string][]string{"assignees": {user}}, true)
	if err != nil {
		return fmt.Errorf("assign issue %d to %s: %w", number, user, err)
	}
	return nil
}

func (b *Backend) CreateGoal(ctx context.Context, container string, req types.CreateGoalRequest) (*types.Goal, error) {
	payload := map[string]any{"title": req.Name, "description": req.Description}
	if req.TargetDate != nil {
		payload["due_on"] = req.TargetDate.UTC().Format(time.RFC3339)
	}
	urlStr := b.c.buildURL("/repos/"+container+"/milestones", nil)
	body, _, err := b.c.request(ctx, http.MethodPost, urlStr, payload, true)
	if err != nil {
		return nil, fmt.Errorf("create goal: %w", err)
	}
	var w wireMilestone
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("parse created goal: %w", err)
	}
	goal := mapMilestone(w)
	return &goal, nil
}

func (b *Backend) CloseGoal(ctx context.Context, container string, goalID string) error {
	urlStr := b.c.buildURL("/repos/"+container+"/milestones/"+goalID, nil)
	_, _, err := b.c.request(ctx, http.MethodPatch, urlStr, map[string]string{"state": "closed"}, true)
	if err != nil {
		return fmt.Errorf("close goal %s: %w", goalID, err)
	}
	return nil
}

func (b *Backend) AssignToGoal(ctx context.Context, container string, number uint64, goalID string) error {
	urlStr := b.c.buildURL(fmt.Sprintf("/repos/%s/issues/%d", container, number), nil)
	_, _, err := b.c.request(ctx, http.MethodPatch, urlStr, map[string]string{"milestone": goalID}, true)
	if err != nil {
		return fmt.Errorf("assign issue %d to goal %s: %w", number, goalID, err)
	}
	return nil
}

func (b *Backend) GetUser(ctx context.Context) (string, error) {
	urlStr := b.c.buildURL("/user", nil)
	body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	var u wireUser
	if err := json.Unmarshal(body, &u); err != nil {
		return "", fmt.Errorf("parse user: %w", err)
	}
	return u.Login, nil
}

func (b *Backend) GetRateLimit(ctx context.Context) (*types.RateLimitInfo, error) {
	urlStr := b.c.buildURL("/rate_limit", nil)
	body, _, err := b.c.request(ctx, http.MethodGet, urlStr, nil, false)
	if err != nil {
		return nil, fmt.Errorf("get rate limit: %w", err)
	}
	var res rateLimitResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parse rate limit: %w", err)
	}
	return &types.RateLimitInfo{Remaining: res.Resources.Core.Remaining, ResetAt: res.Resources.Core.Reset}, nil
}

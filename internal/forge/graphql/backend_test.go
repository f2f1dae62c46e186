package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgesync/frg/internal/types"
)

// newTestBackend routes every GraphQL POST through handler, which
// receives the parsed request and returns the data envelope to encode.
func newTestBackend(t *testing.T, handler func(req graphQLRequest) any) *Backend {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data, err := json.Marshal(handler(req))
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{"data": data})
	}))
	t.Cleanup(srv.Close)

	b := newBackend("test-token")
	b.c.endpoint = srv.URL
	b.c.http = srv.Client()
	return b
}

func issueNode(number float64, title, stateType string) map[string]any {
	return map[string]any{
		"id":     "id-" + title,
		"number": number,
		"title":  title,
		"state":  map[string]any{"id": "s1", "name": stateType, "type": stateType},
		"labels": map[string]any{"nodes": []any{}},
	}
}

func TestListIssuesFollowsCursorsAndMapsStates(t *testing.T) {
	page := 0
	b := newTestBackend(t, func(req graphQLRequest) any {
		page++
		nodes := []any{issueNode(7.0, "first", "started")}
		pageInfo := map[string]any{"hasNextPage": true, "endCursor": "c1"}
		if page == 2 {
			require.Equal(t, "c1", req.Variables["after"], "second fetch must pass the prior endCursor")
			nodes = []any{issueNode(8.0, "second", "canceled")}
			pageInfo = map[string]any{"hasNextPage": false, "endCursor": ""}
		}
		return map[string]any{"team": map[string]any{"issues": map[string]any{
			"pageInfo": pageInfo,
			"nodes":    nodes,
		}}}
	})

	issues, err := b.ListIssues(context.Background(), "eng/team-uuid-1")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	require.Equal(t, uint64(7), issues[0].Number, "float remote number must convert to uint64")
	require.Equal(t, types.IssueOpen, issues[0].State)
	require.Equal(t, types.IssueClosed, issues[1].State, "canceled must map to closed")
}

func TestCloseIssueLooksUpCompletedState(t *testing.T) {
	var updateInput map[string]any
	b := newTestBackend(t, func(req graphQLRequest) any {
		switch {
		case req.Variables["number"] != nil:
			return map[string]any{"issues": map[string]any{"nodes": []any{issueNode(9, "target", "started")}}}
		case req.Variables["input"] != nil && req.Variables["id"] != nil:
			updateInput = req.Variables["input"].(map[string]any)
			return map[string]any{"issueUpdate": map[string]any{"success": true}}
		default:
			return map[string]any{"team": map[string]any{"states": map[string]any{"nodes": []any{
				map[string]any{"id": "st-done", "name": "Done", "type": "completed"},
				map[string]any{"id": "st-todo", "name": "Todo", "type": "unstarted"},
			}}}}
		}
	})

	require.NoError(t, b.CloseIssue(context.Background(), "eng/team-uuid-1", 9))
	require.Equal(t, "st-done", updateInput["stateId"])
}

func TestReopenIssueWalksFallbackChain(t *testing.T) {
	var updateInput map[string]any
	b := newTestBackend(t, func(req graphQLRequest) any {
		switch {
		case req.Variables["number"] != nil:
			return map[string]any{"issues": map[string]any{"nodes": []any{issueNode(9, "target", "completed")}}}
		case req.Variables["input"] != nil && req.Variables["id"] != nil:
			updateInput = req.Variables["input"].(map[string]any)
			return map[string]any{"issueUpdate": map[string]any{"success": true}}
		default:
			// No backlog state: the chain must fall through to unstarted.
			return map[string]any{"team": map[string]any{"states": map[string]any{"nodes": []any{
				map[string]any{"id": "st-prog", "name": "In Progress", "type": "started"},
				map[string]any{"id": "st-todo", "name": "Todo", "type": "unstarted"},
			}}}}
		}
	})

	require.NoError(t, b.ReopenIssue(context.Background(), "eng/team-uuid-1", 9))
	require.Equal(t, "st-todo", updateInput["stateId"], "unstarted must win over started in the fallback chain")
}

func TestReopenFailsWhenNoCandidateStateExists(t *testing.T) {
	b := newTestBackend(t, func(req graphQLRequest) any {
		return map[string]any{"team": map[string]any{"states": map[string]any{"nodes": []any{
			map[string]any{"id": "st-x", "name": "Custom", "type": "triage"},
		}}}}
	})

	err := b.ReopenIssue(context.Background(), "eng/team-uuid-1", 9)
	require.Error(t, err, "a workspace lacking all three candidate types must surface the failure")
}

func TestListGoalsAggregatesProjectIssues(t *testing.T) {
	b := newTestBackend(t, func(req graphQLRequest) any {
		return map[string]any{"team": map[string]any{"projects": map[string]any{"nodes": []any{
			map[string]any{
				"id": "p1", "name": "Launch", "state": "started", "targetDate": "2026-09-30",
				"issues": map[string]any{"nodes": []any{
					map[string]any{"state": map[string]any{"type": "completed"}},
					map[string]any{"state": map[string]any{"type": "canceled"}},
					map[string]any{"state": map[string]any{"type": "started"}},
					map[string]any{"state": map[string]any{"type": "backlog"}},
				}},
			},
		}}}}
	})

	goals, err := b.ListGoals(context.Background(), "eng/team-uuid-1")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	g := goals[0]
	require.Equal(t, types.IssueOpen, g.State)
	require.Equal(t, 2, *g.OpenCount)
	require.Equal(t, 2, *g.ClosedCount)
	require.InDelta(t, 0.5, g.Progress, 1e-9)
	require.NotNil(t, g.TargetDate)
	require.Equal(t, "2026-09-30", g.TargetDate.Format("2006-01-02"))
}

func TestListAllCommentsFlattensNestedConnections(t *testing.T) {
	b := newTestBackend(t, func(req graphQLRequest) any {
		return map[string]any{"team": map[string]any{"issues": map[string]any{
			"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
			"nodes": []any{
				map[string]any{"number": 3.0, "comments": map[string]any{"nodes": []any{
					map[string]any{"id": "c1", "body": "hello", "user": map[string]any{"name": "ada"}},
					map[string]any{"id": "c2", "body": "again", "user": map[string]any{"displayName": "Grace H"}},
				}}},
			},
		}}}
	})

	comments, err := b.ListAllComments(context.Background(), "eng/team-uuid-1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, uint64(3), comments[0].IssueNumber)
	require.Equal(t, "ada", comments[0].Author)
	require.Equal(t, "Grace H", comments[1].Author, "displayName must win when present")
}

func TestGetRateLimitReportsLastSeenHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Requests-Remaining", "1234")
		w.Header().Set("X-RateLimit-Requests-Reset", "1760000000000")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"viewer": map[string]any{"name": "ada"}}})
	}))
	defer srv.Close()

	b := newBackend("test-token")
	b.c.endpoint = srv.URL
	b.c.http = srv.Client()

	info, err := b.GetRateLimit(context.Background())
	require.NoError(t, err)
	require.Nil(t, info, "no budget is known before the first request")

	_, err = b.GetUser(context.Background())
	require.NoError(t, err)

	info, err = b.GetRateLimit(context.Background())
	require.NoError(t, err)
	require.NotNil(t, info)
	require.Equal(t, 1234, info.Remaining)
	require.Equal(t, int64(1760000000), info.ResetAt, "millisecond reset header must normalize to unix seconds")
}

// Package forge is the capability surface (C2): a uniform, polymorphic
// contract over heterogeneous remote issue trackers. The cache store never
// imports this package; forge implementations only ever produce the
// shared types.Issue/Comment/Goal shapes it returns to their callers.
//
// Two concrete backends satisfy Capability: package rest (a paginated
// REST tracker, modeled on a GitHub-style API) and package graphql (a
// single-query GraphQL tracker, modeled on a Linear-style API). Each
// registers a constructor under its types.ForgeKind from an init() func,
// so callers resolve a backend from the tag stored on a Source without
// an import-time dependency on every concrete package.
package forge

import (
	"context"
	"fmt"

	"github.com/forgesync/frg/internal/types"
)

// Capability is the full set of operations a forge backend must support.
// Every method takes container, the remote_id of the Source being acted
// on (e.g. "owner/repo" or "team-key/team-id").
type Capability interface {
	ListIssues(ctx context.Context, container string) ([]types.Issue, error)
	GetIssue(ctx context.Context, container string, number uint64) (*types.Issue, error)
	ListAllComments(ctx context.Context, container string) ([]types.Comment, error)
	ListGoals(ctx context.Context, container string) ([]types.Goal, error)

	CreateIssue(ctx context.Context, container string, req types.CreateIssueRequest) (*types.Issue, error)
	CreateComment(ctx context.Context, container string, number uint64, body string) error
	CloseIssue(ctx context.Context, container string, number uint64) error
	ReopenIssue(ctx context.Context, container string, number uint64) error
	AddLabel(ctx context.Context, container string, number uint64, label string) error
	RemoveLabel(ctx context.Context, container string, number uint64, label string) error
	AssignIssue(ctx context.Context, container string, number uint64, user string) error

	CreateGoal(ctx context.Context, container string, req types.CreateGoalRequest) (*types.Goal, error)
	CloseGoal(ctx context.Context, container string, goalID string) error
	AssignToGoal(ctx context.Context, container string, number uint64, goalID string) error

	GetUser(ctx context.Context) (string, error)
	GetRateLimit(ctx context.Context) (*types.RateLimitInfo, error)
}

// Factory builds a Capability for one access token. Besides the token and
// an HTTP client, a GraphQL backend holds its own request limiter and
// last-seen budget, and REST backends share one process-wide read permit
// and write spacer; a fresh Capability per Source is cheap.
type Factory func(token string) Capability

var registry = map[types.ForgeKind]Factory{}

// Register associates a ForgeKind with its Factory. Concrete backend
// packages call this from an init() func.
func Register(kind types.ForgeKind, f Factory) {
	registry[kind] = f
}

// New resolves kind's registered Factory and constructs a Capability
// bound to token. Returns an error if kind is not a registered backend.
func New(kind types.ForgeKind, token string) (Capability, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("forge: unregistered backend kind %q", kind)
	}
	return f(token), nil
}

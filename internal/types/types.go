// Package types defines the forge-agnostic shapes shared by the cache
// store, the forge capability surface, and the CLI: issues, comments,
// goals, and the bookkeeping rows that back sources, the write queue, and
// rate-limit state.
package types

import (
	"fmt"
	"strings"
	"time"
)

// IssueState is the closed set of issue lifecycle states.
type IssueState string

const (
	IssueOpen   IssueState = "open"
	IssueClosed IssueState = "closed"
)

// ForgeKind is the closed set of remote backend tags. It is stored
// verbatim in Source.ForgeKind and RateLimitState.ForgeKind, and used as
// the registry key in package forge.
type ForgeKind string

const (
	KindREST    ForgeKind = "rest-forge"
	KindGraphQL ForgeKind = "graphql-forge"
)

// OpKind is the closed set of queueable mutation kinds.
type OpKind string

const (
	OpCreate       OpKind = "create"
	OpComment      OpKind = "comment"
	OpClose        OpKind = "close"
	OpReopen       OpKind = "reopen"
	OpLabelAdd     OpKind = "label_add"
	OpLabelRemove  OpKind = "label_remove"
	OpAssign       OpKind = "assign"
	OpCreateGoal   OpKind = "create_goal"
	OpAssignGoal   OpKind = "assign_goal"
	OpCloseGoal    OpKind = "close_goal"
)

// Issue is the uniform shape every forge backend converts its native
// issue representation into. Keyed by (RemoteID, Number).
type Issue struct {
	RemoteID  string     `json:"-"`
	Number    uint64     `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body,omitempty"`
	State     IssueState `json:"state"`
	Author    string     `json:"author"`
	Labels    []string   `json:"labels"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	URL       string     `json:"url,omitempty"`
	GoalName  string     `json:"goal_name,omitempty"`
}

// Comment is keyed by (RemoteID, CommentID).
type Comment struct {
	RemoteID    string    `json:"-"`
	CommentID   string    `json:"comment_id"`
	IssueNumber uint64    `json:"issue_number"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}

// Goal is a time-bound issue container (milestone/project).
type Goal struct {
	RemoteID    string     `json:"-"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	State       IssueState `json:"state"`
	Progress    float64    `json:"progress"`
	OpenCount   *int       `json:"open_count,omitempty"`
	ClosedCount *int       `json:"closed_count,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	URL         string     `json:"url,omitempty"`
}

// Source is a local working directory linked to a remote container.
type Source struct {
	LocalPath   string    `json:"local_path"`
	ForgeKind   ForgeKind `json:"forge_kind"`
	RemoteID    string    `json:"remote_id"`
	DisplayName string    `json:"display_name"`
	LinkedAt    time.Time `json:"linked_at"`
}

// WatchedSource marks a Source as eligible for background reconciliation.
type WatchedSource struct {
	LocalPath    string    `json:"local_path"`
	AddedAt      time.Time `json:"added_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// SyncState is the one-row-per-remote last-sync bookkeeping row.
type SyncState struct {
	RemoteID   string    `json:"remote_id"`
	LastSync   time.Time `json:"last_sync"`
	IssueCount int       `json:"issue_count"`
}

// PendingOp is one queued mutation awaiting remote execution.
type PendingOp struct {
	ID        int64     `json:"id"`
	RemoteID  string    `json:"remote_id"`
	OpKind    OpKind    `json:"op_kind"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// RateLimitState is the one-row-per-forge-kind rate limit budget.
type RateLimitState struct {
	ForgeKind string    `json:"forge_kind"`
	Limit     *int      `json:"limit,omitempty"`
	Remaining *int      `json:"remaining,omitempty"`
	ResetAt   *int64    `json:"reset_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateIssueRequest is the uniform payload for Capability.CreateIssue,
// also the shape serialized into a PendingOp of kind OpCreate.
type CreateIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// CreateGoalRequest is the uniform payload for Capability.CreateGoal, also
// the shape serialized into a PendingOp of kind OpCreateGoal.
type CreateGoalRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
}

// RateLimitInfo is Capability.GetRateLimit's return shape: a nil pointer
// means the backend exposed no budget information for this call.
type RateLimitInfo struct {
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"reset_at"`
}

// ParseRemoteID validates that a remote_id parses as two slash-separated
// non-empty parts (e.g. "owner/repo" or "team-key/team-id"), per the
// Source invariant in the data model.
func ParseRemoteID(remoteID string) (first, second string, err error) {
	parts := strings.SplitN(remoteID, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("remote id %q must be two non-empty slash-separated parts", remoteID)
	}
	return parts[0], parts[1], nil
}

// Package rest is the REST-forge backend: a paginated GitHub-style REST
// API client satisfying forge.Capability. Issues fetch by parallel page
// requests under the shared read permit; mutations space themselves via
// the shared write mutex.
package rest

import (
	"net/http"
	"time"
)

const (
	// DefaultAPIEndpoint is the REST-forge base URL.
	DefaultAPIEndpoint = "https://api.github.com"
	// DefaultTimeout bounds every HTTP call this backend makes.
	DefaultTimeout = 30 * time.Second
	// MaxPageSize is the page size used for the concurrent issue fetch
	// and the sequential comment fetch.
	MaxPageSize = 100
)

// wireIssue mirrors the subset of a GitHub-style issue payload this
// backend needs.
type wireIssue struct {
	Number    uint64     `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	User      *wireUser  `json:"user"`
	Labels    []wireLabel `json:"labels"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	HTMLURL   string     `json:"html_url"`
	PullReq   *struct {
		URL string `json:"url"`
	} `json:"pull_request,omitempty"`
}

type wireUser struct {
	Login string `json:"login"`
}

type wireLabel struct {
	Name string `json:"name"`
}

type wireComment struct {
	ID        int64      `json:"id"`
	Body      string     `json:"body"`
	User      *wireUser  `json:"user"`
	CreatedAt *time.Time `json:"created_at"`
	IssueURL  string     `json:"issue_url"`
}

type wireMilestone struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	State       string     `json:"state"`
	DueOn       *time.Time `json:"due_on"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	HTMLURL     string     `json:"html_url"`
	OpenIssues  int        `json:"open_issues"`
	ClosedIssues int       `json:"closed_issues"`
}

type searchResult struct {
	TotalCount int `json:"total_count"`
}

// rateLimitResponse mirrors GitHub's GET /rate_limit response, scoped to
// the "core" bucket this backend consumes.
type rateLimitResponse struct {
	Resources struct {
		Core struct {
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"core"`
	} `json:"resources"`
}

// doer is the subset of *http.Client this package depends on, so tests
// can swap in a fake transport.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

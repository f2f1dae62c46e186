package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/forgesync/frg/internal/types"
)

// graphqlTracer spans every remote operation, labeled by the GraphQL
// operation name.
var graphqlTracer = otel.Tracer("github.com/forgesync/frg/forge/graphql")

// opName extracts the operation name from a query document, e.g.
// "TeamIssues" from "query TeamIssues($teamId: String!) {...}".
func opName(query string) string {
	fields := strings.Fields(query)
	if len(fields) < 2 {
		return "unknown"
	}
	name := fields[1]
	if i := strings.IndexAny(name, "({"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "unknown"
	}
	return name
}

const (
	// DefaultAPIEndpoint is the GraphQL-forge endpoint. Every operation
	// is a POST here.
	DefaultAPIEndpoint = "https://api.linear.app/graphql"
	// DefaultTimeout bounds every HTTP call this backend makes.
	DefaultTimeout = 30 * time.Second
)

// client owns the token, the endpoint, a client-side token-bucket
// limiter (the remote allows ~1500 requests/hour; 2/sec sustained with a
// burst absorbs cold-cache fetch spikes), and the last-seen rate-limit
// headers.
type client struct {
	token    string
	endpoint string
	http     doer
	limiter  *rate.Limiter

	mu        sync.Mutex
	remaining *int
	resetAt   *int64
}

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

func newClient(token string) *client {
	return &client{
		token:    token,
		endpoint: DefaultAPIEndpoint,
		http:     &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(2), 50),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// query executes one GraphQL operation and decodes its data envelope
// into result. Remote errors are surfaced with their message verbatim so
// the callers' substring classifiers (rate limit, 404) can see them.
func (c *client) query(ctx context.Context, query string, variables map[string]any, result any) (err error) {
	ctx, span := graphqlTracer.Start(ctx, "graphql."+opName(query),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graphql.operation", opName(query))),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.recordRateLimitHeaders(resp.Header)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("rate limit: %s (status %d)", string(respBody), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("remote error: %s", gqlResp.Errors[0].Message)
	}
	if err := json.Unmarshal(gqlResp.Data, result); err != nil {
		return fmt.Errorf("parse data: %w", err)
	}
	return nil
}

// recordRateLimitHeaders keeps the most recent complimentary rate-limit
// headers so GetRateLimit can report them without a dedicated endpoint.
func (c *client) recordRateLimitHeaders(h http.Header) {
	remStr := h.Get("X-RateLimit-Requests-Remaining")
	resetStr := h.Get("X-RateLimit-Requests-Reset")
	if remStr == "" && resetStr == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rem, err := strconv.Atoi(remStr); err == nil {
		c.remaining = &rem
	}
	if reset, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
		// The header is milliseconds since epoch; the budget row stores
		// unix seconds.
		if reset > 1e12 {
			reset /= 1000
		}
		c.resetAt = &reset
	}
}

func (c *client) lastRateLimit() *types.RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining == nil || c.resetAt == nil {
		return nil
	}
	return &types.RateLimitInfo{Remaining: *c.remaining, ResetAt: *c.resetAt}
}

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgesync/frg/internal/ratelimit"
)

// restTracer spans every remote call this backend makes, mirroring the
// per-request client spans the daemon log's trace exporter consumes.
var restTracer = otel.Tracer("github.com/forgesync/frg/forge/rest")

// spanURL strips the query string to keep spans readable.
func spanURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}

// client is the low-level HTTP layer shared by every backend method: it
// owns the token, the base URL, the process-wide read permit and
// write-spacing mutex, and the 403/429 backoff retry loop.
type client struct {
	token   string
	baseURL string
	http    doer
	permit  *ratelimit.ReadPermit
	spacer  *ratelimit.WriteSpacer
}

func (c *client) buildURL(path string, params map[string]string) string {
	u := c.baseURL + path
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}
	return u
}

// request performs one authenticated HTTP call, retrying 403/429
// responses per the rate-limit backoff policy for at most
// ratelimit.MaxBackoffAttempts attempts in total. isWrite requests first wait on the
// write-spacing mutex; reads hold a slot of the shared permit for the
// whole call.
func (c *client) request(ctx context.Context, method, urlStr string, body any, isWrite bool) (_ []byte, _ http.Header, err error) {
	ctx, span := restTracer.Start(ctx, "rest.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("url.path", spanURL(urlStr)),
			attribute.Bool("forge.write", isWrite),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	if isWrite {
		if err := c.spacer.Wait(ctx); err != nil {
			return nil, nil, err
		}
	} else {
		if err := c.permit.Acquire(ctx); err != nil {
			return nil, nil, err
		}
		defer c.permit.Release()
	}

	var lastErr error
	for attempt := 0; attempt < ratelimit.MaxBackoffAttempts; attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
		if err != nil {
			return nil, nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("request failed: %w", err)
		}
		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
		_ = resp.Body.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("read response: %w", err)
		}

		if isRateLimitStatus(resp.StatusCode, respBody) {
			lastErr = fmt.Errorf("rate limit: %s (status %d)", string(respBody), resp.StatusCode)
			delay := ratelimit.BackoffDelay(resp.Header, attempt)
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, nil, fmt.Errorf("%d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, resp.Header, nil
	}

	return nil, nil, fmt.Errorf("%w: %v", ratelimit.ErrBackoffExhausted, lastErr)
}

func isRateLimitStatus(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status == http.StatusForbidden {
		lower := strings.ToLower(string(body))
		return strings.Contains(lower, "rate limit")
	}
	return false
}

// lastPathSegment extracts the trailing numeric segment from a REST
// resource URL, used to recover a comment's issue number from its
// issue_url field.
func lastPathSegment(u string) (uint64, error) {
	parts := strings.Split(strings.TrimRight(u, "/"), "/")
	if len(parts) == 0 {
		return 0, fmt.Errorf("empty url")
	}
	return strconv.ParseUint(parts[len(parts)-1], 10, 64)
}

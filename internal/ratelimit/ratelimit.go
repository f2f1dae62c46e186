// Package ratelimit is the rate-limit governor: a process-wide read
// permit, a per-forge write-spacing mutex, and the 403/429 backoff parser
// shared by every REST-forge request. The permit and mutex exist because
// the REST backend's secondary rate limits are process-global; package
// rest constructs one pair on first use and hands the same pointers to
// every REST-forge backend instance in the process.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultReadPermits is the default global concurrency cap on
// simultaneous in-flight REST-forge reads.
const DefaultReadPermits = 80

// MinWriteSpacing is the minimum interval enforced between successive
// writes on one forge's WriteSpacer.
const MinWriteSpacing = time.Second

// MaxBackoffAttempts bounds the 403/429 retry loop.
const MaxBackoffAttempts = 3

// ReadPermit bounds simultaneous in-flight requests to a fixed constant.
// Package rest shares one ReadPermit across all of its backend instances.
type ReadPermit struct {
	sem *semaphore.Weighted
}

// NewReadPermit constructs a permit allowing n concurrent holders.
func NewReadPermit(n int64) *ReadPermit {
	if n <= 0 {
		n = DefaultReadPermits
	}
	return &ReadPermit{sem: semaphore.NewWeighted(n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (p *ReadPermit) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release frees the slot. Callers must pair every successful Acquire
// with exactly one Release, including on the error path.
func (p *ReadPermit) Release() {
	p.sem.Release(1)
}

// WriteSpacer guards a last-write timestamp: every write waits until at
// least MinWriteSpacing has elapsed since the previous write released the
// mutex, so secondary rate limits on mutating endpoints are respected.
type WriteSpacer struct {
	mu        sync.Mutex
	lastWrite time.Time
}

// Wait blocks (or returns ctx.Err()) until the spacing interval has
// elapsed, then reserves the current moment as the new last-write time.
// The mutex is always released, including when ctx is canceled
// mid-sleep.
func (w *WriteSpacer) Wait(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastWrite.IsZero() {
		elapsed := time.Since(w.lastWrite)
		if wait := MinWriteSpacing - elapsed; wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	w.lastWrite = time.Now()
	return nil
}

// BackoffDelay computes the wait before retrying a 403/429 response at
// the given zero-based attempt number. It honors a Retry-After header
// when present; otherwise it falls back to 2^attempt seconds.
func BackoffDelay(header http.Header, attempt int) time.Duration {
	if ra := header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// ErrBackoffExhausted is returned when MaxBackoffAttempts rate-limit
// retries have all failed.
var ErrBackoffExhausted = fmt.Errorf("rate limit backoff exhausted after %d attempts", MaxBackoffAttempts)

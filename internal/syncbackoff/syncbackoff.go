// Package syncbackoff tracks the reconciliation loop's in-memory,
// per-source backoff state. Each Backoff implements
// github.com/cenkalti/backoff/v4's BackOff interface directly, so the
// loop drives cooldowns through the same contract the rest of the
// codebase uses for retries.
//
// The map is owned by exactly one reconciliation loop instance; it is
// never persisted and never shared across processes.
package syncbackoff

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Cooldowns start at 30s and double per consecutive failure. The exponent
// (failures-1) is clamped to 6 so the shift never overflows for
// pathological failure counts; the delay therefore stops growing at
// 30s * 2^6 = 32 minutes, below the 1-hour cap.
const (
	baseInterval = 30 * time.Second
	capInterval  = time.Hour
	maxExponent  = 6
	minInterval  = time.Second
	jitterSpread = 0.25 // jitter(d) = d * (1 + U(-0.25, +0.25))
)

// rawDelay returns the un-jittered center delay for the given
// consecutive failure count: min(30 * 2^min(n-1, 6), 3600) seconds,
// floored at 1 second.
func rawDelay(consecutiveFailures int) time.Duration {
	// The first failure waits the base interval; each further failure
	// doubles it, so the exponent is failures-1.
	exp := consecutiveFailures - 1
	if exp < 0 {
		exp = 0
	}
	if exp > maxExponent {
		exp = maxExponent
	}
	d := baseInterval * time.Duration(1<<exp)
	if d > capInterval {
		d = capInterval
	}
	if d < minInterval {
		d = minInterval
	}
	return d
}

// CalculateBackoff applies the jitter spread to the raw delay for
// consecutiveFailures, using the package-level math/rand source.
// Exported so callers can assert cooldown bounds without driving a full
// Backoff.
func CalculateBackoff(consecutiveFailures int) time.Duration {
	d := rawDelay(consecutiveFailures)
	factor := 1 + (rand.Float64()*2-1)*jitterSpread
	jittered := time.Duration(float64(d) * factor)
	if jittered < minInterval {
		jittered = minInterval
	}
	return jittered
}

// Backoff is one source's cooldown state. Construct via Manager.Get.
type Backoff struct {
	mu                  sync.Mutex
	consecutiveFailures int
	nextAttempt         time.Time
}

var _ backoff.BackOff = (*Backoff)(nil)

// NextBackOff increments the failure count, computes the next jittered
// delay, stamps the next-attempt time, and returns the delay. Never
// returns backoff.Stop: the reconciliation loop backs off indefinitely,
// it never gives up on a watched source.
func (b *Backoff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	d := CalculateBackoff(b.consecutiveFailures)
	b.nextAttempt = time.Now().Add(d)
	return d
}

// Reset clears the entry on a successful sync.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.nextAttempt = time.Time{}
}

// ShouldSkip reports whether now is still within the cooldown window.
func (b *Backoff) ShouldSkip(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.nextAttempt)
}

// ConsecutiveFailures returns the current failure count, for status
// reporting and tests.
func (b *Backoff) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutiveFailures
}

// NextAttemptTime returns the stamped cooldown deadline.
func (b *Backoff) NextAttemptTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextAttempt
}

// Manager owns the remote_id -> Backoff mapping for one reconciliation
// loop instance.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*Backoff
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*Backoff)}
}

// Get returns (creating if absent) the Backoff for remoteID.
func (m *Manager) Get(remoteID string) *Backoff {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[remoteID]
	if !ok {
		b = &Backoff{}
		m.entries[remoteID] = b
	}
	return b
}

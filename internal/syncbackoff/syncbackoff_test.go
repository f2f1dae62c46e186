package syncbackoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateBackoffWithinJitterBounds(t *testing.T) {
	cases := []struct {
		failures int
		lo, hi   time.Duration
	}{
		{1, 22500 * time.Millisecond, 37500 * time.Millisecond},
		{2, 45 * time.Second, 75 * time.Second},
		{3, 90 * time.Second, 150 * time.Second},
		{4, 180 * time.Second, 300 * time.Second},
	}
	for _, tc := range cases {
		for i := 0; i < 50; i++ {
			d := CalculateBackoff(tc.failures)
			require.GreaterOrEqualf(t, d, tc.lo, "failures=%d", tc.failures)
			require.LessOrEqualf(t, d, tc.hi, "failures=%d", tc.failures)
		}
	}
}

func TestCalculateBackoffCappedAtOneHour(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := CalculateBackoff(20)
		require.LessOrEqual(t, d, time.Duration(float64(time.Hour)*1.25))
		require.GreaterOrEqual(t, d, time.Second)
	}
}

func TestManagerGrowsFailuresPerSource(t *testing.T) {
	m := NewManager()
	a := m.Get("acme/widgets")
	b := m.Get("acme/other")

	a.NextBackOff()
	a.NextBackOff()
	b.NextBackOff()

	require.Equal(t, 2, a.ConsecutiveFailures())
	require.Equal(t, 1, b.ConsecutiveFailures())
	require.Same(t, a, m.Get("acme/widgets"), "Get must return the same entry on repeat calls")
}

func TestBackoffShouldSkipAndReset(t *testing.T) {
	b := &Backoff{}
	now := time.Now()
	require.False(t, b.ShouldSkip(now), "a fresh entry has no cooldown")

	b.NextBackOff()
	require.True(t, b.ShouldSkip(time.Now()))

	b.Reset()
	require.False(t, b.ShouldSkip(time.Now()))
	require.Equal(t, 0, b.ConsecutiveFailures())
}

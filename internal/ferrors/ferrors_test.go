package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNetworkClassMatchesClosedSet(t *testing.T) {
	for _, msg := range []string{
		"dial tcp 1.2.3.4:443: Connection Refused",
		"network is unreachable",
		"no route to host",
		"dns error while resolving",
		"read: connection reset by peer",
		"request timed out",
		"Could Not Resolve host",
	} {
		assert.True(t, IsNetworkClass(errors.New(msg)), msg)
	}

	assert.False(t, IsNetworkClass(errors.New("401: bad credentials")))
	assert.False(t, IsNetworkClass(nil))
}

func TestIsConflictClass(t *testing.T) {
	assert.True(t, IsConflictClass(errors.New("404: not found")))
	assert.True(t, IsConflictClass(errors.New("409 Conflict")))
	assert.True(t, IsConflictClass(errors.New("422: validation failed")))
	assert.False(t, IsConflictClass(errors.New("500: internal error")))
}

func TestIsRateLimitSignal(t *testing.T) {
	assert.True(t, IsRateLimitSignal(errors.New("API Rate Limit exceeded")))
	assert.True(t, IsRateLimitSignal(errors.New("403: forbidden")))
	assert.False(t, IsRateLimitSignal(errors.New("500: internal error")))
}

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrap("load issues", ErrFatal, errors.New("disk full"))
	require.ErrorIs(t, err, ErrFatal)
	require.Contains(t, err.Error(), "disk full")

	err = Wrap("resolve source", ErrNotLinked, nil)
	require.ErrorIs(t, err, ErrNotLinked)
}

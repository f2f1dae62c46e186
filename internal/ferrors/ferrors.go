// Package ferrors defines the error taxonomy shared by the cache store,
// the forge capability surface, the write queue, and the reconciliation
// loop. Callers use errors.Is against the sentinels below; the
// classifier funcs match remote error text for the cases where only a
// message is available.
package ferrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotLinked means the current working directory has no Source row.
	ErrNotLinked = errors.New("not linked")
	// ErrNotAuthenticated means neither keyring nor env var yields a token.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNetworkUnavailable classifies a remote call that failed because
	// the network itself was unreachable (see IsNetworkClass).
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrRateLimited means the remote signaled a throttle.
	ErrRateLimited = errors.New("rate limited")
	// ErrConflict means the remote returned 404/409/422 during replay.
	ErrConflict = errors.New("conflict")
	// ErrMalformed means a payload could not be deserialized.
	ErrMalformed = errors.New("malformed payload")
	// ErrFatal wraps an I/O or database error that should propagate to
	// the process exit code.
	ErrFatal = errors.New("fatal error")
)

// Wrap attaches op context to a sentinel, following wrapDBError's shape.
func Wrap(op string, sentinel, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, sentinel)
	}
	return fmt.Errorf("%s: %w: %v", op, sentinel, cause)
}

// networkSubstrings is the closed set of messages classified as
// network-class, which triggers queueing on writes and per-source
// backoff on sync. Matching is a case-insensitive substring test.
var networkSubstrings = []string{
	"connection refused",
	"network is unreachable",
	"no route to host",
	"dns error",
	"connection reset",
	"timed out",
	"could not resolve",
}

// IsNetworkClass reports whether err's message matches the closed set of
// network-failure substrings, case-insensitively.
func IsNetworkClass(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range networkSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// conflictSubstrings: a queue-replay failure whose message contains one
// of these HTTP status codes is conflict-class and discards the op
// instead of retrying it.
var conflictSubstrings = []string{"404", "409", "422"}

// IsConflictClass reports whether err's message names a conflict status.
func IsConflictClass(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range conflictSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsRateLimitSignal reports whether a remote error body signals a rate
// limit: case-insensitive "rate limit" or a bare "403".
func IsRateLimitSignal(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "403")
}

// Package daemonlock is the reconciliation loop's exclusive advisory
// lock: a flock'd "daemon.lock" file in the cache directory,
// authoritative for at-most-one-instance, plus a best-effort sibling
// "daemon.pid" file for observability only. A liveness check that
// trusted the pid file would race with process death between check and
// spawn; the flock cannot.
package daemonlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned when another process already holds the
// exclusive lock.
var ErrLocked = errors.New("daemon lock already held by another process")

// Info is the JSON metadata recorded in the lock file, readable by
// `daemon status` without needing to contend for the lock itself.
type Info struct {
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
}

// Lock represents a held advisory lock. Close releases it; the
// underlying OS file descriptor close is what actually drops the flock,
// so process exit releases the lock even without a clean shutdown.
type Lock struct {
	file *os.File
}

// Close releases the lock.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Acquire attempts to take the exclusive, non-blocking lock on
// "daemon.lock" under cacheDir, and best-effort writes "daemon.pid"
// alongside it. Returns ErrLocked if another process holds it.
func Acquire(cacheDir, version string) (*Lock, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	lockPath := filepath.Join(cacheDir, "daemon.lock")
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := flockExclusiveNonBlocking(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("lock file: %w", err)
	}

	info := Info{PID: os.Getpid(), Version: version, StartedAt: time.Now().UTC()}
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	_ = enc.Encode(info)
	_ = f.Sync()

	pidPath := filepath.Join(cacheDir, "daemon.pid")
	_ = os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o600)

	return &Lock{file: f}, nil
}

// ReadInfo reads the lock file's metadata without acquiring the lock,
// for `daemon status` to report against. A missing or unparseable file
// yields ok=false rather than an error: presence alone does not imply
// liveness, and a cold cache directory is not a failure.
func ReadInfo(cacheDir string) (info Info, ok bool) {
	data, err := os.ReadFile(filepath.Join(cacheDir, "daemon.lock"))
	if err != nil {
		return Info{}, false
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, false
	}
	return info, true
}

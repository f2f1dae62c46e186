// Package daemon is the reconciliation loop: a single-instance
// background process that keeps the cache warm by visiting watched
// sources in recency order, draining each source's pending-op queue, and
// pulling fresh remote state — all inside the rate-limit governor's
// budget, with jittered per-source backoff on failure.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/forgesync/frg/internal/daemonlock"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/syncbackoff"
	"github.com/forgesync/frg/internal/syncer"
)

// sleepJitterSpread desynchronizes fleet-wide reconciliation: the loop
// sleeps interval * (1 + U(-0.1, +0.1)) between cycles.
const sleepJitterSpread = 0.1

// Daemon is one reconciliation loop instance.
type Daemon struct {
	Store    *store.Store
	Syncer   *syncer.Syncer
	Logger   *slog.Logger
	CacheDir string
	Version  string

	// Interval is the base sleep between cycles, before jitter.
	Interval time.Duration

	backoffs *syncbackoff.Manager
}

// Run acquires the exclusive lock, performs the startup cleanup pass,
// and cycles until ctx is cancelled. Cancellation is observed only at
// sleep boundaries; a sync in flight always completes.
func (d *Daemon) Run(ctx context.Context) error {
	lock, err := daemonlock.Acquire(d.CacheDir, d.Version)
	if err != nil {
		if errors.Is(err, daemonlock.ErrLocked) {
			return errors.New("another reconciliation daemon is already running")
		}
		return err
	}
	defer lock.Close()

	d.backoffs = syncbackoff.NewManager()

	removed, err := d.Store.CleanupStaleSources(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		d.Logger.Info("removed stale sources at startup", "count", removed)
	}

	watcher := d.startWatcher(ctx)
	if watcher != nil {
		defer watcher.Close()
	}

	d.Logger.Info("daemon started", "interval", d.Interval, "cache_dir", d.CacheDir)
	for {
		d.runCycle(ctx)

		select {
		case <-ctx.Done():
			d.Logger.Info("daemon stopping")
			return nil
		case <-time.After(jitteredInterval(d.Interval)):
		}
	}
}

// jitteredInterval spreads the base interval by +/-10%.
func jitteredInterval(base time.Duration) time.Duration {
	factor := 1 + (rand.Float64()*2-1)*sleepJitterSpread
	return time.Duration(float64(base) * factor)
}

// runCycle visits every watched source in last-accessed order, skipping
// those inside their per-source backoff window.
func (d *Daemon) runCycle(ctx context.Context) {
	start := time.Now()
	loopMetrics.cycles.Add(ctx, 1)

	watched, err := d.Store.ListWatchedSources(ctx)
	if err != nil {
		d.Logger.Error("list watched sources", "error", err)
		return
	}

	for _, w := range watched {
		src, err := d.Store.GetSource(ctx, w.LocalPath)
		if err != nil {
			// Watched but unlinked: the startup cleanup or the watcher
			// will reconcile it; nothing to sync now.
			d.Logger.Warn("watched source has no link", "local_path", w.LocalPath, "error", err)
			continue
		}

		b := d.backoffs.Get(src.RemoteID)
		if b.ShouldSkip(time.Now()) {
			loopMetrics.skippedBackoff.Add(ctx, 1)
			d.Logger.Debug("skipping source in backoff",
				"remote_id", src.RemoteID, "failures", b.ConsecutiveFailures(), "next_attempt", b.NextAttemptTime())
			continue
		}

		err = d.Syncer.SyncSource(ctx, *src)
		switch {
		case err == nil:
			b.Reset()
			loopMetrics.sourcesSynced.Add(ctx, 1)
		case errors.Is(err, syncer.ErrCooldown):
			// Persisted rate-limit window: a skip, not a failure.
			loopMetrics.skippedRateLimit.Add(ctx, 1)
		default:
			delay := b.NextBackOff()
			d.Logger.Warn("sync failed, backing off",
				"remote_id", src.RemoteID, "failures", b.ConsecutiveFailures(), "retry_in", delay, "error", err)
		}
	}

	loopMetrics.cycleDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
}

// Backoffs exposes the per-source backoff mapping for tests and status
// introspection.
func (d *Daemon) Backoffs() *syncbackoff.Manager {
	return d.backoffs
}

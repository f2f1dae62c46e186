package daemon

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// startWatcher watches the parent directories of every watched source so
// a deletion triggers an immediate cleanup pass instead of waiting for
// the next daemon restart. Best-effort: a watch failure only logs — the
// startup cleanup still runs on every restart.
func (d *Daemon) startWatcher(ctx context.Context) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.Logger.Warn("create source watcher", "error", err)
		return nil
	}

	watched, err := d.Store.ListWatchedSources(ctx)
	if err != nil {
		d.Logger.Warn("list sources for watcher", "error", err)
		_ = watcher.Close()
		return nil
	}

	paths := make(map[string]bool, len(watched))
	for _, w := range watched {
		paths[w.LocalPath] = true
		parent := filepath.Dir(w.LocalPath)
		if err := watcher.Add(parent); err != nil {
			d.Logger.Warn("watch directory", "dir", parent, "error", err)
		}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !paths[event.Name] {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					removed, err := d.Store.CleanupStaleSources(ctx)
					if err != nil {
						d.Logger.Warn("cleanup after removal event", "error", err)
						continue
					}
					if removed > 0 {
						d.Logger.Info("removed stale sources after directory removal", "count", removed, "path", event.Name)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.Logger.Warn("source watcher error", "error", err)
			}
		}
	}()
	return watcher
}

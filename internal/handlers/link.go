package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/forgesync/frg/internal/sourcefile"
	"github.com/forgesync/frg/internal/types"
)

// Link records cwd as a source for the given forge kind and remote id,
// marks it watched, writes the .frg marker, and performs the initial
// synchronous sync so the first read command is served from a warm
// cache.
func (h *Handler) Link(ctx context.Context, cwd string, kind types.ForgeKind, remoteID, displayName string) (*types.Source, error) {
	if _, _, err := types.ParseRemoteID(remoteID); err != nil {
		return nil, err
	}
	switch kind {
	case types.KindREST, types.KindGraphQL:
	default:
		return nil, fmt.Errorf("unknown forge kind %q (want %s or %s)", kind, types.KindREST, types.KindGraphQL)
	}
	if displayName == "" {
		displayName = filepath.Base(cwd)
	}

	src := types.Source{
		LocalPath:   cwd,
		ForgeKind:   kind,
		RemoteID:    remoteID,
		DisplayName: displayName,
		LinkedAt:    time.Now().UTC(),
	}
	if err := h.Store.LinkSource(ctx, src); err != nil {
		return nil, err
	}
	if err := h.Store.AddWatchedSource(ctx, cwd, time.Now()); err != nil {
		return nil, err
	}
	if err := sourcefile.Write(cwd, sourcefile.SourceFile{ForgeKind: kind, RemoteID: remoteID}); err != nil {
		return nil, err
	}

	if err := h.syncer().SyncSource(ctx, src); err != nil {
		return nil, fmt.Errorf("linked, but initial sync failed: %w", err)
	}
	return &src, nil
}

// Unlink removes cwd's source link, watch entry, and .frg marker. The
// cached rows for the remote are left behind; a future link to the same
// remote reuses them.
func (h *Handler) Unlink(ctx context.Context, cwd string) error {
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return err
	}
	if err := h.Store.UnlinkSource(ctx, src.LocalPath); err != nil {
		return err
	}
	return sourcefile.Remove(src.LocalPath)
}

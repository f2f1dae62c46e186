// Package handlers holds the CLI verb logic (C6): translating user
// intent into cache reads or remote writes with offline fallback to the
// pending-op queue. The Cobra layer in cmd/frg is a thin shell over this
// package; nothing here depends on Cobra, so the daemon and tests call
// the same code paths the CLI does.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/forgesync/frg/internal/creds"
	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/sourcefile"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/syncer"
	"github.com/forgesync/frg/internal/types"
)

// Handler bundles the collaborators every verb needs. NewForge defaults
// to forge.New and is swappable in tests.
type Handler struct {
	Store    *store.Store
	Resolver *creds.Resolver
	Logger   *slog.Logger

	NewForge func(kind types.ForgeKind, token string) (forge.Capability, error)
}

func (h *Handler) newForge(kind types.ForgeKind, token string) (forge.Capability, error) {
	if h.NewForge != nil {
		return h.NewForge(kind, token)
	}
	return forge.New(kind, token)
}

func (h *Handler) syncer() *syncer.Syncer {
	return &syncer.Syncer{
		Store:    h.Store,
		Resolver: h.Resolver,
		Logger:   h.Logger,
		NewForge: h.NewForge,
	}
}

// ResolveSource maps a working directory to its Source row, walking up
// through the .frg marker when cwd is a subdirectory of the linked root.
// Returns ErrNotLinked when no link exists.
func (h *Handler) ResolveSource(ctx context.Context, cwd string) (*types.Source, error) {
	src, err := h.Store.GetSource(ctx, cwd)
	if err == nil {
		return src, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	if root, ok := sourcefile.FindRoot(cwd); ok {
		src, err := h.Store.GetSource(ctx, root)
		if err == nil {
			return src, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}
	return nil, ferrors.Wrap(fmt.Sprintf("directory %s", cwd), ferrors.ErrNotLinked, nil)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// resolveForge materializes the capability for src's forge kind.
func (h *Handler) resolveForge(src *types.Source) (forge.Capability, error) {
	token, err := h.Resolver.Token(src.ForgeKind)
	if err != nil {
		return nil, err
	}
	return h.newForge(src.ForgeKind, token)
}

// prepareRead resolves the source, performs an inline synchronous sync
// when the source has never been synced, and touches the watch entry to
// raise reconciliation priority. After this, the read itself is pure
// cache and never contacts the network.
func (h *Handler) prepareRead(ctx context.Context, cwd string) (*types.Source, error) {
	src, err := h.ResolveSource(ctx, cwd)
	if err != nil {
		return nil, err
	}

	state, err := h.Store.GetSyncState(ctx, src.RemoteID)
	if err != nil {
		return nil, err
	}
	if state.LastSync.IsZero() {
		if err := h.syncer().SyncSource(ctx, *src); err != nil {
			return nil, fmt.Errorf("initial sync: %w", err)
		}
	}

	if err := h.Store.Touch(ctx, src.LocalPath, time.Now()); err != nil {
		return nil, err
	}
	return src, nil
}

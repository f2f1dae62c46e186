// Package syncer implements the per-source sync protocol: queue drain,
// full issue/comment/goal pull, and rate-limit budget upkeep for one
// source. The reconciliation loop drives it every cycle; the CLI drives
// it for the `sync` verb and for the inline sync a read command performs
// when a source has never been synced.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgesync/frg/internal/creds"
	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/queue"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/types"
)

// syncTracer spans every per-source sync so the daemon log carries a
// trace per cycle alongside its metrics. Registered against the global
// delegating provider; telemetry.Init installs the real one.
var syncTracer = otel.Tracer("github.com/forgesync/frg/syncer")

// endSpan records an error (if any) and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ErrCooldown means the forge kind is inside a persisted rate-limit
// window and the source was skipped without contacting the remote. The
// loop treats it as a skip, not a failure.
var ErrCooldown = errors.New("rate limit cooldown in effect")

// conservativeCooldown is applied when a sync hits a rate-limit signal
// but the forge exposes no budget information.
const conservativeCooldown = 60 * time.Second

// Syncer holds the collaborators SYNC needs. NewForge and Now are
// swappable for tests and default to forge.New and time.Now.
type Syncer struct {
	Store    *store.Store
	Resolver *creds.Resolver
	Logger   *slog.Logger

	NewForge func(kind types.ForgeKind, token string) (forge.Capability, error)
	Now      func() time.Time
}

func (s *Syncer) newForge(kind types.ForgeKind, token string) (forge.Capability, error) {
	if s.NewForge != nil {
		return s.NewForge(kind, token)
	}
	return forge.New(kind, token)
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SyncSource runs one full sync for src: materialize the capability,
// honor any persisted rate-limit cooldown, drain the pending-op queue,
// then replace the cached issue, comment, and goal sets. On full success
// the forge's current budget is persisted.
func (s *Syncer) SyncSource(ctx context.Context, src types.Source) (err error) {
	ctx, span := syncTracer.Start(ctx, "sync.source",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("sync.remote_id", src.RemoteID),
			attribute.String("sync.forge_kind", string(src.ForgeKind)),
		),
	)
	defer func() { endSpan(span, err) }()

	token, err := s.Resolver.Token(src.ForgeKind)
	if err != nil {
		return err
	}
	cap, err := s.newForge(src.ForgeKind, token)
	if err != nil {
		return err
	}

	rl, err := s.Store.GetRateLimitState(ctx, string(src.ForgeKind))
	if err != nil {
		return err
	}
	if rl.ResetAt != nil && s.now().Unix() < *rl.ResetAt {
		s.Logger.Info("skipping source, rate limit cooldown",
			"remote_id", src.RemoteID, "forge", src.ForgeKind, "reset_at", *rl.ResetAt)
		return fmt.Errorf("%s: %w", src.ForgeKind, ErrCooldown)
	}

	if err := queue.Drain(ctx, s.Store, cap, src.RemoteID, s.Logger); err != nil {
		return err
	}

	issues, err := cap.ListIssues(ctx, src.RemoteID)
	if err != nil {
		return s.handleListError(ctx, cap, src, "issues", err)
	}
	if err := s.Store.SaveIssues(ctx, src.RemoteID, issues); err != nil {
		return err
	}

	comments, err := cap.ListAllComments(ctx, src.RemoteID)
	if err != nil {
		return s.handleListError(ctx, cap, src, "comments", err)
	}
	if err := s.Store.SaveComments(ctx, src.RemoteID, comments); err != nil {
		return err
	}

	goals, err := cap.ListGoals(ctx, src.RemoteID)
	if err != nil {
		return s.handleListError(ctx, cap, src, "goals", err)
	}
	if err := s.Store.SaveGoals(ctx, src.RemoteID, goals); err != nil {
		return err
	}

	s.persistRateLimit(ctx, cap, src.ForgeKind, "")
	s.Logger.Info("synced source", "remote_id", src.RemoteID, "issues", len(issues), "comments", len(comments), "goals", len(goals))
	return nil
}

// handleListError stamps the rate-limit row when the failure is a
// throttle signal, then re-raises the error for the outer loop to turn
// into per-source backoff.
func (s *Syncer) handleListError(ctx context.Context, cap forge.Capability, src types.Source, what string, err error) error {
	if ferrors.IsRateLimitSignal(err) {
		s.persistRateLimit(ctx, cap, src.ForgeKind, err.Error())
		return fmt.Errorf("list %s for %s: %w: %v", what, src.RemoteID, ferrors.ErrRateLimited, err)
	}
	return fmt.Errorf("list %s for %s: %w", what, src.RemoteID, err)
}

// persistRateLimit fetches the forge's current budget and writes the
// per-forge row. With no budget information and a throttle in flight, a
// conservative fixed cooldown is stamped instead.
func (s *Syncer) persistRateLimit(ctx context.Context, cap forge.Capability, kind types.ForgeKind, lastError string) {
	row := types.RateLimitState{
		ForgeKind: string(kind),
		LastError: lastError,
		UpdatedAt: s.now().UTC(),
	}

	info, err := cap.GetRateLimit(ctx)
	switch {
	case err == nil && info != nil:
		row.Remaining = &info.Remaining
		row.ResetAt = &info.ResetAt
	case lastError != "":
		reset := s.now().Add(conservativeCooldown).Unix()
		row.ResetAt = &reset
	default:
		// Healthy sync, no budget reported: record the timestamp only.
	}

	if err := s.Store.SetRateLimitState(ctx, row); err != nil {
		s.Logger.Warn("persist rate limit state", "forge", kind, "error", err)
	}
}

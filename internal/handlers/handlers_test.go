package handlers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgesync/frg/internal/creds"
	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/sourcefile"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/types"
)

// fakeForge serves canned data and optionally fails mutations.
type fakeForge struct {
	forge.Capability

	issues   []types.Issue
	mutErr   error
	listHits int
}

func (f *fakeForge) ListIssues(ctx context.Context, container string) ([]types.Issue, error) {
	f.listHits++
	return f.issues, nil
}

func (f *fakeForge) ListAllComments(ctx context.Context, container string) ([]types.Comment, error) {
	return nil, nil
}

func (f *fakeForge) ListGoals(ctx context.Context, container string) ([]types.Goal, error) {
	return nil, nil
}

func (f *fakeForge) GetRateLimit(ctx context.Context) (*types.RateLimitInfo, error) {
	return nil, nil
}

func (f *fakeForge) CreateIssue(ctx context.Context, container string, req types.CreateIssueRequest) (*types.Issue, error) {
	if f.mutErr != nil {
		return nil, f.mutErr
	}
	return &types.Issue{Number: 7, Title: req.Title}, nil
}

func (f *fakeForge) CloseIssue(ctx context.Context, container string, number uint64) error {
	return f.mutErr
}

func (f *fakeForge) AssignToGoal(ctx context.Context, container string, number uint64, goalID string) error {
	if f.mutErr != nil {
		return f.mutErr
	}
	if goalID != "g1" {
		return errors.New("unexpected goal id")
	}
	return nil
}

func newTestHandler(t *testing.T, f *fakeForge) (*Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	t.Setenv(creds.EnvVar(types.KindREST), "test-token")

	return &Handler{
		Store:    st,
		Resolver: &creds.Resolver{},
		Logger:   slog.New(slog.DiscardHandler),
		NewForge: func(kind types.ForgeKind, token string) (forge.Capability, error) {
			return f, nil
		},
	}, st
}

func linkTestSource(t *testing.T, h *Handler) string {
	t.Helper()
	cwd := t.TempDir()
	_, err := h.Link(context.Background(), cwd, types.KindREST, "acme/widgets", "widgets")
	require.NoError(t, err)
	return cwd
}

func TestResolveSourceUnlinked(t *testing.T) {
	h, _ := newTestHandler(t, &fakeForge{})
	_, err := h.ResolveSource(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ferrors.ErrNotLinked)
}

func TestResolveSourceWalksUpFromSubdirectory(t *testing.T) {
	h, _ := newTestHandler(t, &fakeForge{})
	cwd := linkTestSource(t, h)

	nested := filepath.Join(cwd, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	src, err := h.ResolveSource(context.Background(), nested)
	require.NoError(t, err)
	require.Equal(t, cwd, src.LocalPath)
}

func TestLinkPerformsInitialSyncAndWatches(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{issues: []types.Issue{{Number: 1, Title: "a", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now()}}}
	h, st := newTestHandler(t, f)
	cwd := linkTestSource(t, h)

	state, err := st.GetSyncState(ctx, "acme/widgets")
	require.NoError(t, err)
	require.False(t, state.LastSync.IsZero(), "link must leave a warm cache behind")

	watched, err := st.ListWatchedSources(ctx)
	require.NoError(t, err)
	require.Len(t, watched, 1)
	require.Equal(t, cwd, watched[0].LocalPath)

	_, ok := sourcefile.Load(cwd)
	require.True(t, ok)
}

func TestLinkRejectsMalformedRemoteID(t *testing.T) {
	h, _ := newTestHandler(t, &fakeForge{})
	_, err := h.Link(context.Background(), t.TempDir(), types.KindREST, "just-one-part", "")
	require.Error(t, err)
}

func TestIssueListServedFromCacheAfterInitialSync(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{issues: []types.Issue{{Number: 1, Title: "a", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now()}}}
	h, _ := newTestHandler(t, f)
	cwd := linkTestSource(t, h)
	require.Equal(t, 1, f.listHits)

	issues, err := h.IssueList(ctx, cwd, "", "")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 1, f.listHits, "a read after the initial sync must not contact the remote")
}

func TestIssueCreateOnlineReportsNumber(t *testing.T) {
	h, _ := newTestHandler(t, &fakeForge{})
	cwd := linkTestSource(t, h)

	res, err := h.IssueCreate(context.Background(), cwd, types.CreateIssueRequest{Title: "x"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.False(t, res.Queued)
	require.NotNil(t, res.IssueNumber)
	require.Equal(t, uint64(7), *res.IssueNumber)
}

func TestIssueCreateOfflineQueues(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{}
	h, st := newTestHandler(t, f)
	cwd := linkTestSource(t, h)

	f.mutErr = errors.New("dial tcp: connection refused")
	res, err := h.IssueCreate(ctx, cwd, types.CreateIssueRequest{Title: "x"})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Queued)
	require.Nil(t, res.IssueNumber)
	require.Contains(t, res.Message, "Queued")

	ops, err := st.LoadPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, types.OpCreate, ops[0].OpKind)
	require.Contains(t, string(ops[0].Payload), `"title":"x"`)
}

func TestIssueCloseNonNetworkFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{mutErr: errors.New("403: forbidden")}
	h, st := newTestHandler(t, f)
	cwd := linkTestSource(t, h)

	_, err := h.IssueClose(ctx, cwd, 1)
	require.Error(t, err)

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestGoalAssignResolvesGoalIDFromCache(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{}
	h, st := newTestHandler(t, f)
	cwd := linkTestSource(t, h)

	require.NoError(t, st.SaveGoal(ctx, "acme/widgets", types.Goal{
		ID: "g1", Name: "Launch", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	res, err := h.GoalAssign(ctx, cwd, "Launch", 3)
	require.NoError(t, err)
	require.True(t, res.Success)

	_, err = h.GoalAssign(ctx, cwd, "Nonexistent", 3)
	require.Error(t, err)
}

func TestUnlinkRemovesLinkWatchAndMarker(t *testing.T) {
	ctx := context.Background()
	h, st := newTestHandler(t, &fakeForge{})
	cwd := linkTestSource(t, h)

	require.NoError(t, h.Unlink(ctx, cwd))

	_, err := h.ResolveSource(ctx, cwd)
	require.ErrorIs(t, err, ferrors.ErrNotLinked)

	watched, err := st.ListWatchedSources(ctx)
	require.NoError(t, err)
	require.Empty(t, watched)

	_, ok := sourcefile.Load(cwd)
	require.False(t, ok, "unlink must remove the .frg marker")
}

func TestStatusReportsPendingOpsAndAuth(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{}
	h, _ := newTestHandler(t, f)
	cwd := linkTestSource(t, h)

	f.mutErr = errors.New("network is unreachable")
	_, err := h.IssueClose(ctx, cwd, 1)
	require.NoError(t, err)

	report, err := h.Status(ctx, cwd, t.TempDir())
	require.NoError(t, err)
	require.True(t, report.Auth[string(types.KindREST)])
	require.NotNil(t, report.Source)
	require.Equal(t, 1, report.Source.PendingOps)
	require.Equal(t, "acme/widgets", report.Source.RemoteID)
}

func TestParseTargetDate(t *testing.T) {
	rfc, err := ParseTargetDate("2026-09-30T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2026, rfc.Year())

	plain, err := ParseTargetDate("2026-09-30")
	require.NoError(t, err)
	require.Equal(t, time.September, plain.Month())

	natural, err := ParseTargetDate("next friday")
	require.NoError(t, err)
	require.NotNil(t, natural)
	require.True(t, natural.After(time.Now()))

	none, err := ParseTargetDate("")
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = ParseTargetDate("gibberish qqq")
	require.Error(t, err)
}

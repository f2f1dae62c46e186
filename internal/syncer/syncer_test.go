package syncer

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgesync/frg/internal/creds"
	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/types"
)

// fakeForge serves canned data and records which list methods ran.
type fakeForge struct {
	forge.Capability

	issues    []types.Issue
	comments  []types.Comment
	goals     []types.Goal
	rateLimit *types.RateLimitInfo

	listErr error
	calls   []string
}

func (f *fakeForge) ListIssues(ctx context.Context, container string) ([]types.Issue, error) {
	f.calls = append(f.calls, "issues")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.issues, nil
}

func (f *fakeForge) ListAllComments(ctx context.Context, container string) ([]types.Comment, error) {
	f.calls = append(f.calls, "comments")
	return f.comments, nil
}

func (f *fakeForge) ListGoals(ctx context.Context, container string) ([]types.Goal, error) {
	f.calls = append(f.calls, "goals")
	return f.goals, nil
}

func (f *fakeForge) GetRateLimit(ctx context.Context) (*types.RateLimitInfo, error) {
	f.calls = append(f.calls, "rate_limit")
	return f.rateLimit, nil
}

func newTestSyncer(t *testing.T, f *fakeForge) (*Syncer, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	t.Setenv(creds.EnvVar(types.KindREST), "test-token")

	return &Syncer{
		Store:    st,
		Resolver: &creds.Resolver{},
		Logger:   slog.New(slog.DiscardHandler),
		NewForge: func(kind types.ForgeKind, token string) (forge.Capability, error) {
			return f, nil
		},
	}, st
}

func testSource() types.Source {
	return types.Source{LocalPath: "/tmp/x", ForgeKind: types.KindREST, RemoteID: "acme/widgets"}
}

func TestSyncSourceReplacesCacheAndPersistsBudget(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{
		issues:    []types.Issue{{Number: 1, Title: "a", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now()}},
		comments:  []types.Comment{{CommentID: "c1", IssueNumber: 1, Body: "hi", CreatedAt: time.Now()}},
		goals:     []types.Goal{{ID: "g1", Name: "Launch", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now()}},
		rateLimit: &types.RateLimitInfo{Remaining: 4999, ResetAt: time.Now().Add(time.Hour).Unix()},
	}
	s, st := newTestSyncer(t, f)

	require.NoError(t, s.SyncSource(ctx, testSource()))

	issues, err := st.LoadIssuesFiltered(ctx, "acme/widgets", "", "")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	state, err := st.GetSyncState(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 1, state.IssueCount)

	rl, err := st.GetRateLimitState(ctx, string(types.KindREST))
	require.NoError(t, err)
	require.NotNil(t, rl.Remaining)
	require.Equal(t, 4999, *rl.Remaining)
}

func TestSyncSourceSkipsDuringPersistedCooldown(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{}
	s, st := newTestSyncer(t, f)

	reset := time.Now().Add(45 * time.Second).Unix()
	require.NoError(t, st.SetRateLimitState(ctx, types.RateLimitState{
		ForgeKind: string(types.KindREST), ResetAt: &reset, UpdatedAt: time.Now(),
	}))

	err := s.SyncSource(ctx, testSource())
	require.ErrorIs(t, err, ErrCooldown)
	require.Empty(t, f.calls, "a cooldown skip must not contact the forge's list methods")
}

func TestSyncSourceDrainsQueueBeforePull(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{}
	s, st := newTestSyncer(t, f)

	// A conflicting queued op is discarded during the drain.
	_, err := st.QueueOp(ctx, "acme/widgets", types.OpClose, []byte(`{"number":9999999}`))
	require.NoError(t, err)
	f.Capability = conflictOnClose{}

	require.NoError(t, s.SyncSource(ctx, testSource()))

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

type conflictOnClose struct {
	forge.Capability
}

func (conflictOnClose) CloseIssue(ctx context.Context, container string, number uint64) error {
	return errors.New("404: issue not found")
}

func TestSyncSourceStampsConservativeCooldownOnRateLimitSignal(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{listErr: errors.New("403 rate limit exceeded")}
	s, st := newTestSyncer(t, f)

	before := time.Now()
	err := s.SyncSource(ctx, testSource())
	require.ErrorIs(t, err, ferrors.ErrRateLimited)

	rl, err := st.GetRateLimitState(ctx, string(types.KindREST))
	require.NoError(t, err)
	require.NotNil(t, rl.ResetAt, "a throttle with no reported budget must stamp the conservative cooldown")
	require.GreaterOrEqual(t, *rl.ResetAt, before.Add(50*time.Second).Unix())
	require.LessOrEqual(t, *rl.ResetAt, before.Add(70*time.Second).Unix())
	require.Contains(t, rl.LastError, "rate limit")
}

func TestSyncSourceNonRateLimitErrorPropagates(t *testing.T) {
	ctx := context.Background()
	f := &fakeForge{listErr: errors.New("500: internal error")}
	s, st := newTestSyncer(t, f)

	err := s.SyncSource(ctx, testSource())
	require.Error(t, err)
	require.NotErrorIs(t, err, ferrors.ErrRateLimited)

	rl, err := st.GetRateLimitState(ctx, string(types.KindREST))
	require.NoError(t, err)
	require.Nil(t, rl.ResetAt, "a non-throttle failure must not stamp a cooldown")
}

package queue

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgesync/frg/internal/forge"
	"github.com/forgesync/frg/internal/store"
	"github.com/forgesync/frg/internal/types"
)

// fakeForge records calls and fails them according to failWith.
type fakeForge struct {
	forge.Capability

	calls    []string
	failWith error
}

func (f *fakeForge) CreateIssue(ctx context.Context, container string, req types.CreateIssueRequest) (*types.Issue, error) {
	f.calls = append(f.calls, "create:"+req.Title)
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &types.Issue{Number: 101, Title: req.Title}, nil
}

func (f *fakeForge) CreateComment(ctx context.Context, container string, number uint64, body string) error {
	f.calls = append(f.calls, "comment")
	return f.failWith
}

func (f *fakeForge) CloseIssue(ctx context.Context, container string, number uint64) error {
	f.calls = append(f.calls, "close")
	return f.failWith
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestDispatchSuccessReportsIssueNumber(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{}

	payload, err := Marshal(types.CreateIssueRequest{Title: "x"})
	require.NoError(t, err)

	res, err := Dispatch(ctx, st, f, "acme/widgets", types.OpCreate, payload)
	require.NoError(t, err)
	require.False(t, res.Queued)
	require.NotNil(t, res.IssueNumber)
	require.Equal(t, uint64(101), *res.IssueNumber)

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestDispatchQueuesOnNetworkFailure(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{failWith: errors.New("dial tcp: connection refused")}

	payload, err := Marshal(types.CreateIssueRequest{Title: "x"})
	require.NoError(t, err)

	res, err := Dispatch(ctx, st, f, "acme/widgets", types.OpCreate, payload)
	require.NoError(t, err)
	require.True(t, res.Queued)
	require.Nil(t, res.IssueNumber)

	ops, err := st.LoadPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, types.OpCreate, ops[0].OpKind)
	require.Contains(t, string(ops[0].Payload), `"title":"x"`)
}

func TestDispatchSurfacesNonNetworkFailure(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{failWith: errors.New("401: bad credentials")}

	payload, err := Marshal(CommentPayload{Number: 1, Body: "hi"})
	require.NoError(t, err)

	_, err = Dispatch(ctx, st, f, "acme/widgets", types.OpComment, payload)
	require.Error(t, err)

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 0, count, "non-network failures must not queue")
}

func TestDrainReplaysInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{}

	p1, _ := Marshal(CommentPayload{Number: 1, Body: "a"})
	p2, _ := Marshal(NumberPayload{Number: 1})
	_, err := st.QueueOp(ctx, "acme/widgets", types.OpComment, p1)
	require.NoError(t, err)
	_, err = st.QueueOp(ctx, "acme/widgets", types.OpClose, p2)
	require.NoError(t, err)

	require.NoError(t, Drain(ctx, st, f, "acme/widgets", discard()))
	require.Equal(t, []string{"comment", "close"}, f.calls)

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestDrainDiscardsConflictClassOps(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{failWith: errors.New("404: issue not found")}

	payload, _ := Marshal(NumberPayload{Number: 9999999})
	_, err := st.QueueOp(ctx, "acme/widgets", types.OpClose, payload)
	require.NoError(t, err)

	require.NoError(t, Drain(ctx, st, f, "acme/widgets", discard()))

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 0, count, "conflicting op must be discarded, remote wins")
}

func TestDrainStopsOnOtherFailures(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{failWith: errors.New("dial tcp: no route to host")}

	p1, _ := Marshal(CommentPayload{Number: 1, Body: "a"})
	p2, _ := Marshal(NumberPayload{Number: 1})
	_, err := st.QueueOp(ctx, "acme/widgets", types.OpComment, p1)
	require.NoError(t, err)
	_, err = st.QueueOp(ctx, "acme/widgets", types.OpClose, p2)
	require.NoError(t, err)

	require.Error(t, Drain(ctx, st, f, "acme/widgets", discard()))
	require.Equal(t, []string{"comment"}, f.calls, "drain must stop at the first retryable failure")

	count, err := st.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 2, count, "both ops must survive for the next cycle")
}

func TestDrainTouchesOnlyItsOwnSource(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	f := &fakeForge{}

	p, _ := Marshal(NumberPayload{Number: 1})
	_, err := st.QueueOp(ctx, "other/repo", types.OpClose, p)
	require.NoError(t, err)

	require.NoError(t, Drain(ctx, st, f, "acme/widgets", discard()))
	require.Empty(t, f.calls, "a drain for one source must not touch another source's ops")
}

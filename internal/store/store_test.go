package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forgesync/frg/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveIssuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	issues := []types.Issue{
		{Number: 1, Title: "first", State: types.IssueOpen, Labels: []string{"bug"}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
		{Number: 2, Title: "second", State: types.IssueClosed, Labels: []string{"docs", "bug"}, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.SaveIssues(ctx, "acme/widgets", issues))

	loaded, err := s.LoadIssuesFiltered(ctx, "acme/widgets", "", "")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, uint64(2), loaded[0].Number, "expected descending order by number")

	st, err := s.GetSyncState(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 2, st.IssueCount)
}

func TestSaveIssuesReplacesPriorSet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveIssues(ctx, "acme/widgets", []types.Issue{
		{Number: 1, Title: "stale", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}))
	require.NoError(t, s.SaveIssues(ctx, "acme/widgets", []types.Issue{
		{Number: 2, Title: "fresh", State: types.IssueOpen, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}))

	loaded, err := s.LoadIssuesFiltered(ctx, "acme/widgets", "", "")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "fresh", loaded[0].Title)
}

func TestLoadIssuesFilteredByStateAndLabel(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveIssues(ctx, "acme/widgets", []types.Issue{
		{Number: 1, Title: "a", State: types.IssueOpen, Labels: []string{"bug"}, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{Number: 2, Title: "b", State: types.IssueClosed, Labels: []string{"bug"}, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		{Number: 3, Title: "c", State: types.IssueOpen, Labels: []string{"enhancement"}, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}))

	open, err := s.LoadIssuesFiltered(ctx, "acme/widgets", "", "open")
	require.NoError(t, err)
	require.Len(t, open, 2)

	bugs, err := s.LoadIssuesFiltered(ctx, "acme/widgets", "bug", "")
	require.NoError(t, err)
	require.Len(t, bugs, 2)
}

func TestLoadIssueNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.LoadIssue(ctx, "acme/widgets", 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveCommentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	comments := []types.Comment{
		{CommentID: "c2", IssueNumber: 1, Body: "second", CreatedAt: time.Now()},
		{CommentID: "c1", IssueNumber: 1, Body: "first", CreatedAt: time.Now().Add(-time.Hour)},
	}
	require.NoError(t, s.SaveComments(ctx, "acme/widgets", comments))

	loaded, err := s.LoadComments(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "c1", loaded[0].CommentID, "expected ascending order by comment_id")

	counts, err := s.CountCommentsByIssue(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 2, counts[1])
}

func TestSaveGoalsAndSingleUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	open, closed := 3, 1
	require.NoError(t, s.SaveGoals(ctx, "acme/widgets", []types.Goal{
		{ID: "g1", Name: "Q3 Launch", State: types.IssueOpen, OpenCount: &open, ClosedCount: &closed, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	}))

	loaded, err := s.LoadGoalByName(ctx, "acme/widgets", "Q3 Launch")
	require.NoError(t, err)
	require.Equal(t, "g1", loaded.ID)
	require.Equal(t, 3, *loaded.OpenCount)

	newOpen := 5
	loaded.OpenCount = &newOpen
	require.NoError(t, s.SaveGoal(ctx, "acme/widgets", *loaded))

	count, err := s.CountGoals(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 1, count, "single-row upsert must not duplicate the goal")

	refreshed, err := s.LoadGoalByName(ctx, "acme/widgets", "Q3 Launch")
	require.NoError(t, err)
	require.Equal(t, 5, *refreshed.OpenCount)
}

func TestPendingOpsOrderingAndCompletion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id1, err := s.QueueOp(ctx, "acme/widgets", types.OpComment, []byte(`{"number":1,"body":"a"}`))
	require.NoError(t, err)
	id2, err := s.QueueOp(ctx, "acme/widgets", types.OpClose, []byte(`{"number":1}`))
	require.NoError(t, err)
	require.Less(t, id1, id2)

	ops, err := s.LoadPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.Equal(t, id1, ops[0].ID, "replay order must match insertion order")
	require.Equal(t, types.OpComment, ops[0].OpKind)

	require.NoError(t, s.CompleteOp(ctx, id1))
	require.NoError(t, s.CompleteOp(ctx, id1), "completing an already-completed id must be idempotent")

	remaining, err := s.CountPendingOps(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Equal(t, 1, remaining)
}

func TestCleanupStaleSourcesRemovesMissingPaths(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	live := t.TempDir()
	gone := filepath.Join(t.TempDir(), "deleted-dir")

	require.NoError(t, s.LinkSource(ctx, types.Source{LocalPath: live, ForgeKind: types.KindREST, RemoteID: "acme/live", DisplayName: "live", LinkedAt: time.Now()}))
	require.NoError(t, s.LinkSource(ctx, types.Source{LocalPath: gone, ForgeKind: types.KindREST, RemoteID: "acme/gone", DisplayName: "gone", LinkedAt: time.Now()}))
	require.NoError(t, s.AddWatchedSource(ctx, live, time.Now()))
	require.NoError(t, s.AddWatchedSource(ctx, gone, time.Now()))

	removed, err := s.CleanupStaleSources(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = s.GetSource(ctx, gone)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetSource(ctx, live)
	require.NoError(t, err)

	// Idempotent: a second run finds nothing left to remove.
	removed, err = s.CleanupStaleSources(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func TestWatchedSourcesOrderedByLastAccessed(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a, b := t.TempDir(), t.TempDir()
	now := time.Now()
	require.NoError(t, s.AddWatchedSource(ctx, a, now.Add(-time.Hour)))
	require.NoError(t, s.AddWatchedSource(ctx, b, now))

	listed, err := s.ListWatchedSources(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, b, listed[0].LocalPath, "most recently accessed source must sort first")

	require.NoError(t, s.Touch(ctx, a, now.Add(time.Hour)))
	listed, err = s.ListWatchedSources(ctx)
	require.NoError(t, err)
	require.Equal(t, a, listed[0].LocalPath, "touch must bump last_accessed ordering")
}

func TestRateLimitStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	unset, err := s.GetRateLimitState(ctx, string(types.KindREST))
	require.NoError(t, err)
	require.Nil(t, unset.Remaining, "an unsynced forge kind must report unknown budget, not zero")

	remaining, resetAt := 4500, int64(1700000000)
	require.NoError(t, s.SetRateLimitState(ctx, types.RateLimitState{
		ForgeKind: string(types.KindREST), Remaining: &remaining, ResetAt: &resetAt, UpdatedAt: time.Now(),
	}))

	loaded, err := s.GetRateLimitState(ctx, string(types.KindREST))
	require.NoError(t, err)
	require.Equal(t, 4500, *loaded.Remaining)
	require.Equal(t, int64(1700000000), *loaded.ResetAt)
}

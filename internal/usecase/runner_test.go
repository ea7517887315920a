package usecase

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/store"
)

// mockFetcher is a mock implementation of the gateway.Fetcher
// interface, so runner behavior can be tested without real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockFetcher) ListPullRequests(ctx context.Context, owner, repo string, since *time.Time) ([]domain.PullRequest, error) {
	args := m.Called(ctx, owner, repo, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PullRequest), args.Error(1)
}

func (m *mockFetcher) ListReviews(ctx context.Context, owner, repo string, number int) ([]domain.Review, error) {
	args := m.Called(ctx, owner, repo, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockFetcher) ListIssues(ctx context.Context, owner, repo string) ([]domain.Issue, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Issue), args.Error(1)
}

func (m *mockFetcher) GetRepoMetadata(ctx context.Context, owner, repo string) (*domain.RepoMetadata, error) {
	args := m.Called(ctx, owner, repo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RepoMetadata), args.Error(1)
}

var testNow = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func newTestRunner(t *testing.T, fetcher *mockFetcher) (*Runner, *store.SnapshotStore) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snapshots := store.New(filepath.Join(dir, "hackathon-data"), filepath.Join(dir, "stats.json"), logger)
	runner := NewRunner(fetcher, snapshots, logger)
	runner.now = func() time.Time { return testNow }
	return runner, snapshots
}

func hackathon(slug string, start, end time.Time, repos []string, org string) domain.Hackathon {
	return domain.Hackathon{
		Slug:         slug,
		Name:         slug,
		StartTime:    start.Format(time.RFC3339),
		EndTime:      end.Format(time.RFC3339),
		Start:        start,
		End:          end,
		Organization: org,
		Repositories: repos,
	}
}

func TestRunner_SkipsEndedHackathonWithSnapshot(t *testing.T) {
	ended := hackathon("ended",
		testNow.Add(-72*time.Hour), testNow.Add(-48*time.Hour),
		[]string{"acme/widgets"}, "")

	fetcher := new(mockFetcher)
	runner, snapshots := newTestRunner(t, fetcher)

	require.NoError(t, snapshots.Save(&domain.Snapshot{
		LastUpdated: testNow.Add(-49 * time.Hour).Format(time.RFC3339),
		Slug:        "ended",
	}))

	runner.Run(context.Background(), []domain.Hackathon{ended})

	// Frozen event: no outbound requests of any kind.
	fetcher.AssertNotCalled(t, "ListPullRequests", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	fetcher.AssertNotCalled(t, "ListIssues", mock.Anything, mock.Anything, mock.Anything)
	fetcher.AssertNotCalled(t, "ListOrgRepos", mock.Anything, mock.Anything)
}

func TestRunner_FinalizesEndedHackathonWithoutSnapshot(t *testing.T) {
	ended := hackathon("ended",
		testNow.Add(-72*time.Hour), testNow.Add(-48*time.Hour),
		[]string{"acme/widgets"}, "")

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", (*time.Time)(nil)).Return([]domain.PullRequest{}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(nil, nil)

	runner, snapshots := newTestRunner(t, fetcher)
	runner.Run(context.Background(), []domain.Hackathon{ended})

	require.True(t, snapshots.Exists("ended"))
	snap := snapshots.Load("ended")
	require.NotNil(t, snap)
	assert.Equal(t, testNow.Format(time.RFC3339), snap.LastUpdated)
	fetcher.AssertExpectations(t)
}

func TestRunner_IncrementalWatermark(t *testing.T) {
	active := hackathon("active",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]string{"acme/widgets"}, "")

	lastUpdated := testNow.Add(-time.Hour)
	wantSince := lastUpdated.Add(-watermarkMargin)

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", mock.MatchedBy(func(since *time.Time) bool {
		return since != nil && since.Equal(wantSince)
	})).Return([]domain.PullRequest{}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(nil, nil)

	runner, snapshots := newTestRunner(t, fetcher)
	require.NoError(t, snapshots.Save(&domain.Snapshot{
		LastUpdated: lastUpdated.Format(time.RFC3339),
		Slug:        "active",
	}))

	runner.Run(context.Background(), []domain.Hackathon{active})
	fetcher.AssertExpectations(t)
}

func TestRunner_MalformedSnapshotTriggersFullFetch(t *testing.T) {
	active := hackathon("active",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]string{"acme/widgets"}, "")

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", (*time.Time)(nil)).Return([]domain.PullRequest{}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(nil, nil)

	runner, snapshots := newTestRunner(t, fetcher)
	require.NoError(t, snapshots.Save(&domain.Snapshot{
		LastUpdated: "not-a-timestamp",
		Slug:        "active",
	}))

	runner.Run(context.Background(), []domain.Hackathon{active})
	fetcher.AssertExpectations(t)
}

func TestRunner_OrgListingCachedAcrossEvents(t *testing.T) {
	first := hackathon("first",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour), nil, "acme")
	second := hackathon("second",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour), nil, "acme")

	fetcher := new(mockFetcher)
	fetcher.On("ListOrgRepos", mock.Anything, "acme").Return([]string{"acme/widgets"}, nil).Once()
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", (*time.Time)(nil)).Return([]domain.PullRequest{}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(nil, nil)

	runner, _ := newTestRunner(t, fetcher)
	runner.Run(context.Background(), []domain.Hackathon{first, second})

	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "ListOrgRepos", 1)
}

func TestRunner_OrgListingFailureFallsBackToExplicitList(t *testing.T) {
	h := hackathon("mixed",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]string{"acme/widgets"}, "acme")

	fetcher := new(mockFetcher)
	fetcher.On("ListOrgRepos", mock.Anything, "acme").Return(nil, assert.AnError)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", (*time.Time)(nil)).Return([]domain.PullRequest{}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(nil, nil)

	runner, snapshots := newTestRunner(t, fetcher)
	runner.Run(context.Background(), []domain.Hackathon{h})

	snap := snapshots.Load("mixed")
	require.NotNil(t, snap)
	assert.Equal(t, []string{"acme/widgets"}, snap.Repositories)
	fetcher.AssertExpectations(t)
}

func TestRunner_SkipsEventWithNoRepositories(t *testing.T) {
	empty := hackathon("empty",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour), nil, "")

	fetcher := new(mockFetcher)
	runner, snapshots := newTestRunner(t, fetcher)
	runner.Run(context.Background(), []domain.Hackathon{empty})

	assert.False(t, snapshots.Exists("empty"))
	fetcher.AssertNotCalled(t, "ListPullRequests", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunner_ReviewsFetchedOnlyForTouchedPRsAndTagged(t *testing.T) {
	h := hackathon("active",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]string{"acme/widgets"}, "")

	created := testNow.Add(-2 * time.Hour)
	pr := domain.PullRequest{
		Repository:  "acme/widgets",
		Number:      7,
		Title:       "Add widgets",
		AuthorLogin: "alice",
		HTMLURL:     "https://github.com/acme/widgets/pull/7",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	submitted := testNow.Add(-time.Hour)
	review := domain.Review{
		ID:          101,
		State:       "APPROVED",
		AuthorLogin: "erin",
		SubmittedAt: &submitted,
	}

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", (*time.Time)(nil)).Return([]domain.PullRequest{pr}, nil)
	fetcher.On("ListReviews", mock.Anything, "acme", "widgets", 7).Return([]domain.Review{review}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(nil, nil)

	runner, snapshots := newTestRunner(t, fetcher)
	runner.Run(context.Background(), []domain.Hackathon{h})

	snap := snapshots.Load("active")
	require.NotNil(t, snap)
	require.Len(t, snap.Stats.ReviewLeaderboard, 1)
	reviews := snap.Stats.ReviewLeaderboard[0].Reviews
	require.Len(t, reviews, 1)
	assert.Equal(t, "Add widgets", reviews[0].PullRequestTitle)
	assert.Equal(t, "https://github.com/acme/widgets/pull/7", reviews[0].PullRequestURL)
	fetcher.AssertExpectations(t)
}

func TestRunner_RepoFailureDoesNotAbortEvent(t *testing.T) {
	h := hackathon("active",
		testNow.Add(-24*time.Hour), testNow.Add(24*time.Hour),
		[]string{"acme/broken", "acme/widgets"}, "")

	created := testNow.Add(-2 * time.Hour)
	merged := testNow.Add(-time.Hour)
	pr := domain.PullRequest{
		Repository:  "acme/widgets",
		Number:      1,
		AuthorLogin: "alice",
		CreatedAt:   created,
		UpdatedAt:   merged,
		MergedAt:    &merged,
	}

	fetcher := new(mockFetcher)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "broken", (*time.Time)(nil)).Return(nil, assert.AnError)
	fetcher.On("ListPullRequests", mock.Anything, "acme", "widgets", (*time.Time)(nil)).Return([]domain.PullRequest{pr}, nil)
	fetcher.On("ListReviews", mock.Anything, "acme", "widgets", 1).Return([]domain.Review{}, nil)
	fetcher.On("ListIssues", mock.Anything, "acme", "broken").Return(nil, assert.AnError)
	fetcher.On("ListIssues", mock.Anything, "acme", "widgets").Return([]domain.Issue{}, nil)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "broken").Return(nil, assert.AnError)
	fetcher.On("GetRepoMetadata", mock.Anything, "acme", "widgets").Return(&domain.RepoMetadata{FullName: "acme/widgets"}, nil)

	runner, snapshots := newTestRunner(t, fetcher)
	runner.Run(context.Background(), []domain.Hackathon{h})

	snap := snapshots.Load("active")
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Stats.TotalPRs)
	assert.Equal(t, 1, snap.Stats.MergedPRs)
	require.Len(t, snap.Stats.RepoData, 1)
	assert.Equal(t, "acme/widgets", snap.Stats.RepoData[0].FullName)
	fetcher.AssertExpectations(t)
}

func TestSplitRepoPath(t *testing.T) {
	testCases := []struct {
		path      string
		wantOwner string
		wantName  string
		wantOK    bool
	}{
		{"acme/widgets", "acme", "widgets", true},
		{"acme", "", "", false},
		{"acme/widgets/extra", "", "", false},
		{"/widgets", "", "", false},
		{"acme/", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			owner, name, ok := splitRepoPath(tc.path)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantOwner, owner)
			assert.Equal(t, tc.wantName, name)
		})
	}
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
)

// watermarkMargin is subtracted from the prior snapshot's lastUpdated
// timestamp to tolerate update propagation delay upstream.
const watermarkMargin = 5 * time.Minute

// processHackathon fetches all activity for one event and produces the
// snapshot to persist. A prior snapshot switches the pull request
// fetch into incremental mode; issues and repository metadata are
// always fetched in full, their volume being comparatively low.
func (r *Runner) processHackathon(ctx context.Context, h domain.Hackathon, repositories []string) *domain.Snapshot {
	since := r.watermark(h)

	var prs []domain.PullRequest
	for _, path := range repositories {
		owner, name, ok := splitRepoPath(path)
		if !ok {
			r.logger.Warn("skipping invalid repo path", slog.String("repo", path))
			continue
		}
		fetched, err := r.fetcher.ListPullRequests(ctx, owner, name, since)
		if err != nil {
			r.logger.Error("failed to fetch pull requests",
				slog.String("repo", path), slog.Any("error", err))
			continue
		}
		prs = append(prs, filterPullRequests(fetched, h.Start, h.End)...)
	}
	r.logger.Info("fetched pull requests",
		slog.String("name", h.Name), slog.Int("count", len(prs)))

	// Reviews are fetched only for pull requests touched in this pass.
	// In incremental mode that is the primary cost reduction: unchanged
	// pull requests trigger no review requests at all.
	var reviews []domain.Review
	for _, pr := range prs {
		owner, name, ok := splitRepoPath(pr.Repository)
		if !ok {
			continue
		}
		fetched, err := r.fetcher.ListReviews(ctx, owner, name, pr.Number)
		if err != nil {
			r.logger.Error("failed to fetch reviews",
				slog.String("repo", pr.Repository),
				slog.Int("number", pr.Number),
				slog.Any("error", err))
			continue
		}
		for i := range fetched {
			fetched[i].Repository = pr.Repository
			fetched[i].PullRequestURL = pr.HTMLURL
			fetched[i].PullRequestTitle = pr.Title
		}
		reviews = append(reviews, fetched...)
	}
	r.logger.Info("fetched reviews",
		slog.String("name", h.Name), slog.Int("count", len(reviews)))

	var issues []domain.Issue
	for _, path := range repositories {
		owner, name, ok := splitRepoPath(path)
		if !ok {
			continue
		}
		fetched, err := r.fetcher.ListIssues(ctx, owner, name)
		if err != nil {
			r.logger.Error("failed to fetch issues",
				slog.String("repo", path), slog.Any("error", err))
			continue
		}
		issues = append(issues, filterIssues(fetched, h.Start, h.End)...)
	}
	r.logger.Info("fetched issues",
		slog.String("name", h.Name), slog.Int("count", len(issues)))

	var repoData []domain.RepoMetadata
	for _, path := range repositories {
		owner, name, ok := splitRepoPath(path)
		if !ok {
			continue
		}
		meta, err := r.fetcher.GetRepoMetadata(ctx, owner, name)
		if err != nil {
			r.logger.Error("failed to fetch metadata",
				slog.String("repo", path), slog.Any("error", err))
			continue
		}
		if meta != nil {
			repoData = append(repoData, *meta)
		}
	}

	stats := Aggregate(prs, reviews, issues, h.Start, h.End, repositories)
	stats.RepoData = repoData

	return &domain.Snapshot{
		LastUpdated:  r.now().UTC().Format(time.RFC3339),
		Slug:         h.Slug,
		Name:         h.Name,
		StartTime:    h.StartTime,
		EndTime:      h.EndTime,
		Repositories: repositories,
		Stats:        stats,
	}
}

// watermark derives the incremental cutoff from the prior snapshot's
// lastUpdated timestamp. A missing or malformed snapshot means full
// mode fetch, never an error.
func (r *Runner) watermark(h domain.Hackathon) *time.Time {
	prior := r.store.Load(h.Slug)
	if prior == nil || prior.LastUpdated == "" {
		return nil
	}
	last, err := time.Parse(time.RFC3339, prior.LastUpdated)
	if err != nil {
		r.logger.Warn("malformed lastUpdated in prior snapshot, full fetch",
			slog.String("slug", h.Slug), slog.Any("error", err))
		return nil
	}
	since := last.Add(-watermarkMargin)
	r.logger.Info("incremental update",
		slog.String("name", h.Name), slog.Time("since", since))
	return &since
}

// filterPullRequests retains pull requests whose creation or merge
// time falls inside the event window. The listing scope can span all
// time, so this keeps irrelevant records out of aggregation.
func filterPullRequests(prs []domain.PullRequest, start, end time.Time) []domain.PullRequest {
	var kept []domain.PullRequest
	for _, pr := range prs {
		byCreation := inWindow(pr.CreatedAt, start, end)
		byMerge := pr.Merged() && inWindow(*pr.MergedAt, start, end)
		if byCreation || byMerge {
			kept = append(kept, pr)
		}
	}
	return kept
}

// filterIssues retains issues whose creation or close time falls
// inside the event window.
func filterIssues(issues []domain.Issue, start, end time.Time) []domain.Issue {
	var kept []domain.Issue
	for _, is := range issues {
		byCreation := inWindow(is.CreatedAt, start, end)
		byClosure := is.ClosedAt != nil && inWindow(*is.ClosedAt, start, end)
		if byCreation || byClosure {
			kept = append(kept, is)
		}
	}
	return kept
}

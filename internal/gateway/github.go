// Package gateway provides a gateway to the GitHub REST API,
// abstracting away pagination, retries and rate-limit waits.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

const (
	userAgent = "BLT-Hackathons-Stats-Fetcher/1.0"

	perPage     = 100
	maxAttempts = 3

	// Primary rate limit waits are computed from the server's reset
	// hint, bounded to [minRateLimitWait, maxRateLimitWait] with a
	// small margin past the reset. Without a hint we fall back to a
	// fixed wait.
	rateLimitMargin       = 5 * time.Second
	minRateLimitWait      = 10 * time.Second
	maxRateLimitWait      = 5 * time.Minute
	fallbackRateLimitWait = time.Minute
)

// errNotFound marks a 404 internally; callers see an empty result.
var errNotFound = errors.New("resource not found")

// Fetcher defines the behavior of a gateway for fetching hackathon
// activity from GitHub.
type Fetcher interface {
	// ListOrgRepos returns the "owner/name" identifiers of every
	// public repository the organization exposes.
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
	// ListPullRequests lists pull requests in all states. With a nil
	// since it lists the full history sorted by creation time; with a
	// non-nil since it lists by update time, newest first, and stops
	// paginating once records fall behind the watermark.
	ListPullRequests(ctx context.Context, owner, repo string, since *time.Time) ([]domain.PullRequest, error)
	// ListReviews lists all reviews for one pull request.
	ListReviews(ctx context.Context, owner, repo string, number int) ([]domain.Review, error)
	// ListIssues lists issues in all states, excluding the pull
	// requests the endpoint conflates with them.
	ListIssues(ctx context.Context, owner, repo string) ([]domain.Issue, error)
	// GetRepoMetadata fetches display metadata for one repository.
	// A missing repository yields (nil, nil).
	GetRepoMetadata(ctx context.Context, owner, repo string) (*domain.RepoMetadata, error)
}

// GitHubGateway is the concrete implementation of the Fetcher
// interface over the GitHub REST v3 API.
type GitHubGateway struct {
	client *github.Client
	logger *slog.Logger

	// pageDelay spaces out page requests; retryDelay is the base of
	// the linear backoff for transient failures. Overridable in tests.
	pageDelay  time.Duration
	retryDelay time.Duration
}

// NewGitHubGateway creates a gateway. The token is optional; without
// it requests run unauthenticated at a sharply lower rate budget.
func NewGitHubGateway(token string, logger *slog.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(maxRateLimitWait, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = rateLimitWaiter
	if token != "" {
		transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	}

	client := github.NewClient(&http.Client{Transport: transport, Timeout: 30 * time.Second})
	client.UserAgent = userAgent

	return &GitHubGateway{
		client:     client,
		logger:     logger,
		pageDelay:  200 * time.Millisecond,
		retryDelay: 5 * time.Second,
	}, nil
}

func (g *GitHubGateway) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	g.logger.Info("fetching repositories for organization", slog.String("org", org))

	opts := &github.RepositoryListByOrgOptions{
		Type:        "public",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var names []string
	for {
		repos, resp, err := do(ctx, g, fmt.Sprintf("orgs/%s/repos", org), func() ([]*github.Repository, *github.Response, error) {
			return g.client.Repositories.ListByOrg(ctx, org, opts)
		})
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list repositories for org %s: %w", org, err)
		}
		for _, r := range repos {
			if name := r.GetFullName(); name != "" {
				names = append(names, name)
			}
		}
		if resp.NextPage == 0 || len(repos) < perPage {
			break
		}
		opts.Page = resp.NextPage
		g.sleep(ctx, g.pageDelay)
	}
	return names, nil
}

func (g *GitHubGateway) ListPullRequests(ctx context.Context, owner, repo string, since *time.Time) ([]domain.PullRequest, error) {
	sort := "created"
	if since != nil {
		sort = "updated"
	}
	g.logger.Info("fetching pull requests",
		slog.String("repo", owner+"/"+repo), slog.String("sort", sort))

	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        sort,
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var records []domain.PullRequest
	for {
		prs, resp, err := do(ctx, g, fmt.Sprintf("repos/%s/%s/pulls", owner, repo), func() ([]*github.PullRequest, *github.Response, error) {
			return g.client.PullRequests.List(ctx, owner, repo, opts)
		})
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list pull requests for %s/%s: %w", owner, repo, err)
		}

		for _, pr := range prs {
			rec := convertPullRequest(owner, repo, pr)
			// Results arrive newest-update-first, so the first record
			// behind the watermark ends the whole listing.
			if since != nil && rec.UpdatedAt.Before(*since) {
				return records, nil
			}
			records = append(records, rec)
		}

		if resp.NextPage == 0 || len(prs) < perPage {
			break
		}
		opts.Page = resp.NextPage
		g.sleep(ctx, g.pageDelay)
	}
	return records, nil
}

func (g *GitHubGateway) ListReviews(ctx context.Context, owner, repo string, number int) ([]domain.Review, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var records []domain.Review
	for {
		reviews, resp, err := do(ctx, g, fmt.Sprintf("repos/%s/%s/pulls/%d/reviews", owner, repo, number), func() ([]*github.PullRequestReview, *github.Response, error) {
			return g.client.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		})
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list reviews for %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, rv := range reviews {
			records = append(records, convertReview(owner, repo, rv))
		}
		if resp.NextPage == 0 || len(reviews) < perPage {
			break
		}
		opts.Page = resp.NextPage
		g.sleep(ctx, g.pageDelay)
	}
	return records, nil
}

func (g *GitHubGateway) ListIssues(ctx context.Context, owner, repo string) ([]domain.Issue, error) {
	g.logger.Info("fetching issues", slog.String("repo", owner+"/"+repo))

	opts := &github.IssueListByRepoOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	var records []domain.Issue
	for {
		issues, resp, err := do(ctx, g, fmt.Sprintf("repos/%s/%s/issues", owner, repo), func() ([]*github.Issue, *github.Response, error) {
			return g.client.Issues.ListByRepo(ctx, owner, repo, opts)
		})
		if err != nil {
			if errors.Is(err, errNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list issues for %s/%s: %w", owner, repo, err)
		}
		for _, is := range issues {
			// The issues endpoint returns pull requests too.
			if is.IsPullRequest() {
				continue
			}
			records = append(records, convertIssue(owner, repo, is))
		}
		if resp.NextPage == 0 || len(issues) < perPage {
			break
		}
		opts.Page = resp.NextPage
		g.sleep(ctx, g.pageDelay)
	}
	return records, nil
}

func (g *GitHubGateway) GetRepoMetadata(ctx context.Context, owner, repo string) (*domain.RepoMetadata, error) {
	repos, _, err := do(ctx, g, fmt.Sprintf("repos/%s/%s", owner, repo), func() ([]*github.Repository, *github.Response, error) {
		r, resp, err := g.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, resp, err
		}
		return []*github.Repository{r}, resp, nil
	})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch metadata for %s/%s: %w", owner, repo, err)
	}
	r := repos[0]
	return &domain.RepoMetadata{
		FullName:        r.GetFullName(),
		Description:     r.GetDescription(),
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		Language:        r.GetLanguage(),
		HTMLURL:         r.GetHTMLURL(),
	}, nil
}

// do executes one API call with bounded retries. Rate-limit responses
// wait until the server's reset hint; 404s surface as errNotFound;
// anything else backs off linearly before the next attempt.
func do[T any](ctx context.Context, g *GitHubGateway, endpoint string, call func() ([]T, *github.Response, error)) ([]T, *github.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		items, resp, err := call()
		if err == nil {
			return items, resp, nil
		}
		if isNotFound(err) {
			g.logger.Warn("not found", slog.String("endpoint", endpoint))
			return nil, nil, errNotFound
		}
		lastErr = err

		if wait, ok := rateLimitWait(err); ok {
			g.logger.Warn("rate limited, waiting",
				slog.String("endpoint", endpoint), slog.Duration("wait", wait))
			if !g.sleep(ctx, wait) {
				return nil, nil, ctx.Err()
			}
			continue
		}

		g.logger.Error("request failed",
			slog.String("endpoint", endpoint),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
		if attempt < maxAttempts {
			if !g.sleep(ctx, time.Duration(attempt)*g.retryDelay) {
				return nil, nil, ctx.Err()
			}
		}
	}
	return nil, nil, lastErr
}

// sleep waits for d or until the context is done. Returns false on
// cancellation.
func (g *GitHubGateway) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func isNotFound(err error) bool {
	var er *github.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

// rateLimitWait classifies rate-limit errors and computes how long to
// wait before retrying.
func rateLimitWait(err error) (time.Duration, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return boundRateLimitWait(time.Until(rle.Rate.Reset.Time) + rateLimitMargin), true
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		if abuse.RetryAfter != nil {
			return boundRateLimitWait(*abuse.RetryAfter), true
		}
		return fallbackRateLimitWait, true
	}
	// Secondary 403/429 responses without a typed error still mean
	// "back off", just without a reset hint.
	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		code := er.Response.StatusCode
		if code == http.StatusForbidden || code == http.StatusTooManyRequests {
			return fallbackRateLimitWait, true
		}
	}
	return 0, false
}

func boundRateLimitWait(wait time.Duration) time.Duration {
	if wait < minRateLimitWait {
		return minRateLimitWait
	}
	if wait > maxRateLimitWait {
		return maxRateLimitWait
	}
	return wait
}

func convertPullRequest(owner, repo string, pr *github.PullRequest) domain.PullRequest {
	rec := domain.PullRequest{
		Repository:      owner + "/" + repo,
		Number:          pr.GetNumber(),
		Title:           pr.GetTitle(),
		AuthorLogin:     pr.GetUser().GetLogin(),
		AuthorAvatarURL: pr.GetUser().GetAvatarURL(),
		AuthorHTMLURL:   pr.GetUser().GetHTMLURL(),
		HTMLURL:         pr.GetHTMLURL(),
		CreatedAt:       pr.GetCreatedAt().Time,
		UpdatedAt:       pr.GetUpdatedAt().Time,
	}
	if pr.MergedAt != nil {
		t := pr.MergedAt.Time
		rec.MergedAt = &t
	}
	return rec
}

func convertReview(owner, repo string, rv *github.PullRequestReview) domain.Review {
	rec := domain.Review{
		Repository:      owner + "/" + repo,
		ID:              rv.GetID(),
		State:           rv.GetState(),
		AuthorLogin:     rv.GetUser().GetLogin(),
		AuthorAvatarURL: rv.GetUser().GetAvatarURL(),
		AuthorHTMLURL:   rv.GetUser().GetHTMLURL(),
		HTMLURL:         rv.GetHTMLURL(),
	}
	if rv.SubmittedAt != nil {
		t := rv.SubmittedAt.Time
		rec.SubmittedAt = &t
	}
	return rec
}

func convertIssue(owner, repo string, is *github.Issue) domain.Issue {
	rec := domain.Issue{
		Repository: owner + "/" + repo,
		State:      is.GetState(),
		CreatedAt:  is.GetCreatedAt().Time,
	}
	if is.ClosedAt != nil {
		t := is.ClosedAt.Time
		rec.ClosedAt = &t
	}
	return rec
}

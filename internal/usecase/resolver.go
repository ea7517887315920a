package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
)

// resolveRepositories computes the repository set for one event: the
// explicit list unioned with every public repository of the configured
// organization, deduplicated, explicit entries first. Organization
// listing failures degrade to the explicit list.
func (r *Runner) resolveRepositories(ctx context.Context, h domain.Hackathon) []string {
	seen := make(map[string]bool)
	var repositories []string
	for _, repo := range h.Repositories {
		if !seen[repo] {
			seen[repo] = true
			repositories = append(repositories, repo)
		}
	}

	if h.Organization == "" {
		return repositories
	}

	orgRepos, ok := r.orgRepos[h.Organization]
	if ok {
		r.logger.Info("using cached org repos",
			slog.String("org", h.Organization), slog.Int("count", len(orgRepos)))
	} else {
		var err error
		orgRepos, err = r.fetcher.ListOrgRepos(ctx, h.Organization)
		if err != nil {
			r.logger.Error("failed to fetch org repos, using explicit list",
				slog.String("org", h.Organization), slog.Any("error", err))
			return repositories
		}
		r.orgRepos[h.Organization] = orgRepos
	}

	for _, repo := range orgRepos {
		if !seen[repo] {
			seen[repo] = true
			repositories = append(repositories, repo)
		}
	}

	r.logger.Info("resolved repositories",
		slog.String("name", h.Name),
		slog.Int("total", len(repositories)),
		slog.Int("explicit", len(h.Repositories)),
		slog.Int("org", len(orgRepos)))
	return repositories
}

// splitRepoPath splits an "owner/name" identifier. Anything that does
// not resolve to exactly two non-empty segments is rejected.
func splitRepoPath(path string) (owner, name string, ok bool) {
	owner, name, found := strings.Cut(path, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

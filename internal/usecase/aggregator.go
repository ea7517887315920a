// Package usecase contains the business logic of the pipeline:
// repository resolution, incremental fetch orchestration and the
// statistics aggregation.
package usecase

import (
	"sort"
	"strings"
	"time"

	montanaflynn "github.com/montanaflynn/stats"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
)

const dateLayout = "2006-01-02"

// Aggregate reduces the raw record streams into the statistics object
// for one event. It is a pure function of its inputs; running it twice
// over the same records yields identical output.
func Aggregate(prs []domain.PullRequest, reviews []domain.Review, issues []domain.Issue, start, end time.Time, repositories []string) *domain.Stats {
	stats := &domain.Stats{
		Leaderboard:       []*domain.Participant{},
		ReviewLeaderboard: []*domain.Participant{},
		RepoStats:         make(map[string]*domain.RepoStat),
		DailyActivity:     make(map[string]*domain.DailyCount),
		DailyMergedPRs:    make(map[string]int),
	}

	// Pre-populate one bucket per calendar date so the series has no
	// gaps, and seed every resolved repository even with zero activity.
	for d := dateOf(start); !d.After(dateOf(end)); d = d.AddDate(0, 0, 1) {
		stats.DailyActivity[d.Format(dateLayout)] = &domain.DailyCount{}
	}
	for _, repo := range repositories {
		stats.RepoStats[repo] = &domain.RepoStat{}
	}

	participants := make(map[string]*domain.Participant)
	var order []string // first-seen order, keeps leaderboard ties stable

	ensureParticipant := func(login, avatar, url string) *domain.Participant {
		p, ok := participants[login]
		if !ok {
			if url == "" {
				url = "https://github.com/" + login
			}
			p = &domain.Participant{
				Username: login,
				Avatar:   avatar,
				URL:      url,
				Reviews:  []domain.ReviewSummary{},
			}
			participants[login] = p
			order = append(order, login)
		}
		return p
	}

	ensureRepoStat := func(repo string) *domain.RepoStat {
		if repo == "" {
			repo = "unknown"
		}
		rs, ok := stats.RepoStats[repo]
		if !ok {
			rs = &domain.RepoStat{}
			stats.RepoStats[repo] = rs
		}
		return rs
	}

	for _, pr := range prs {
		stats.TotalPRs++
		if pr.Merged() {
			stats.MergedPRs++
		}

		rs := ensureRepoStat(pr.Repository)
		rs.Total++
		if pr.Merged() {
			rs.Merged++
		}

		// The pagination scope can span all time; the extra window
		// check guards against clock-skew edge records.
		createdDate := pr.CreatedAt.UTC().Format(dateLayout)
		if bucket, ok := stats.DailyActivity[createdDate]; ok && inWindow(pr.CreatedAt, start, end) {
			bucket.Total++
		}
		if pr.Merged() {
			mergedDate := pr.MergedAt.UTC().Format(dateLayout)
			if bucket, ok := stats.DailyActivity[mergedDate]; ok {
				bucket.Merged++
			}
			stats.DailyMergedPRs[mergedDate]++
		}

		// Bots and Copilot-driven PRs count toward totals but never
		// credit a leaderboard participant.
		if isBot(pr.AuthorLogin) || isCopilotPR(pr.AuthorLogin, pr.Title) {
			continue
		}
		p := ensureParticipant(pr.AuthorLogin, pr.AuthorAvatarURL, pr.AuthorHTMLURL)
		p.PRCount++
		if pr.Merged() {
			p.MergedCount++
		}
	}

	for _, rv := range reviews {
		if isBot(rv.AuthorLogin) || isCopilotLogin(rv.AuthorLogin) || rv.State == "DISMISSED" {
			continue
		}
		if rv.SubmittedAt == nil || !inWindow(*rv.SubmittedAt, start, end) {
			continue
		}

		p := ensureParticipant(rv.AuthorLogin, rv.AuthorAvatarURL, rv.AuthorHTMLURL)
		p.ReviewCount++

		prURL := rv.PullRequestURL
		if prURL == "" {
			prURL = rv.HTMLURL
		}
		p.Reviews = append(p.Reviews, domain.ReviewSummary{
			ID:               rv.ID,
			State:            rv.State,
			SubmittedAt:      rv.SubmittedAt.UTC().Format(time.RFC3339),
			HTMLURL:          rv.HTMLURL,
			PullRequestURL:   prURL,
			PullRequestTitle: rv.PullRequestTitle,
		})
	}

	for _, is := range issues {
		rs := ensureRepoStat(is.Repository)
		rs.Issues++
		stats.TotalIssues++
		if is.State == "closed" {
			rs.ClosedIssues++
			stats.ClosedIssues++
		}
	}

	stats.ParticipantCount = len(participants)
	stats.Leaderboard = buildLeaderboard(participants, order, func(p *domain.Participant) int { return p.MergedCount })
	stats.ReviewLeaderboard = buildLeaderboard(participants, order, func(p *domain.Participant) int { return p.ReviewCount })
	stats.DailySummary = summarizeDaily(stats.DailyActivity)

	return stats
}

// buildLeaderboard ranks participants with a strictly positive count,
// descending, keeping first-seen order on ties.
func buildLeaderboard(participants map[string]*domain.Participant, order []string, count func(*domain.Participant) int) []*domain.Participant {
	board := []*domain.Participant{}
	for _, login := range order {
		if p := participants[login]; count(p) > 0 {
			board = append(board, p)
		}
	}
	sort.SliceStable(board, func(i, j int) bool {
		return count(board[i]) > count(board[j])
	})
	return board
}

// summarizeDaily condenses the daily series into mean and peak PRs
// opened per day.
func summarizeDaily(daily map[string]*domain.DailyCount) domain.DailySummary {
	if len(daily) == 0 {
		return domain.DailySummary{}
	}
	totals := make([]float64, 0, len(daily))
	for _, bucket := range daily {
		totals = append(totals, float64(bucket.Total))
	}
	mean, err := montanaflynn.Mean(totals)
	if err != nil {
		return domain.DailySummary{}
	}
	peak, err := montanaflynn.Max(totals)
	if err != nil {
		return domain.DailySummary{}
	}
	return domain.DailySummary{MeanPRsPerDay: mean, PeakPRsPerDay: peak}
}

// inWindow reports whether t lies inside [start, end], inclusive.
func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isBot(login string) bool {
	return strings.Contains(login, "[bot]") || strings.HasSuffix(strings.ToLower(login), "bot")
}

func isCopilotLogin(login string) bool {
	return strings.Contains(strings.ToLower(login), "copilot")
}

func isCopilotPR(login, title string) bool {
	return isCopilotLogin(login) || strings.Contains(strings.ToLower(title), "copilot")
}

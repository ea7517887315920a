// Package domain contains the core data structures for hackathon
// statistics: the configured events, the raw records fetched from
// GitHub, and the aggregated snapshot that gets persisted.
package domain

import "time"

// Hackathon is one time-boxed event tied to a set of repositories.
// It is supplied by the configuration document and immutable for the
// duration of a run.
type Hackathon struct {
	Slug         string
	Name         string
	StartTime    string // original ISO-8601 string, echoed into the snapshot
	EndTime      string
	Start        time.Time
	End          time.Time
	Organization string
	Repositories []string
}

// Ended reports whether the event window has fully elapsed at now.
func (h Hackathon) Ended(now time.Time) bool {
	return now.After(h.End)
}

// PullRequest is a raw pull request record, tagged with its owning
// repository ("owner/name") after fetch.
type PullRequest struct {
	Repository      string
	Number          int
	Title           string
	AuthorLogin     string
	AuthorAvatarURL string
	AuthorHTMLURL   string
	HTMLURL         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	MergedAt        *time.Time
}

// Merged reports whether the pull request has been merged.
func (p PullRequest) Merged() bool { return p.MergedAt != nil }

// Review is a raw pull request review record. The pull request title
// and URL are attached by the orchestrator, since the review listing
// endpoint does not carry them.
type Review struct {
	Repository       string
	ID               int64
	State            string
	AuthorLogin      string
	AuthorAvatarURL  string
	AuthorHTMLURL    string
	HTMLURL          string
	SubmittedAt      *time.Time
	PullRequestURL   string
	PullRequestTitle string
}

// Issue is a raw issue record, already stripped of the pull requests
// the issues listing endpoint conflates with real issues.
type Issue struct {
	Repository string
	State      string
	CreatedAt  time.Time
	ClosedAt   *time.Time
}

// RepoMetadata is the per-repository metadata echoed into the snapshot
// for display purposes.
type RepoMetadata struct {
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	Language        string `json:"language"`
	HTMLURL         string `json:"html_url"`
}

// ReviewSummary is one review attributed to a participant.
type ReviewSummary struct {
	ID               int64  `json:"id"`
	State            string `json:"state"`
	SubmittedAt      string `json:"submitted_at"`
	HTMLURL          string `json:"html_url"`
	PullRequestURL   string `json:"pull_request_url"`
	PullRequestTitle string `json:"pull_request_title"`
}

// Participant accumulates the contributions of a single author login.
// Created lazily on first contribution, never deleted within a run.
type Participant struct {
	Username    string          `json:"username"`
	Avatar      string          `json:"avatar"`
	URL         string          `json:"url"`
	MergedCount int             `json:"mergedCount"`
	PRCount     int             `json:"prCount"`
	ReviewCount int             `json:"reviewCount"`
	Reviews     []ReviewSummary `json:"reviews"`
}

// RepoStat holds per-repository activity totals.
type RepoStat struct {
	Total        int `json:"total"`
	Merged       int `json:"merged"`
	Issues       int `json:"issues"`
	ClosedIssues int `json:"closedIssues"`
}

// DailyCount is one calendar-date bucket within the event window.
type DailyCount struct {
	Total  int `json:"total"`
	Merged int `json:"merged"`
}

// DailySummary condenses the daily activity series for charting.
type DailySummary struct {
	MeanPRsPerDay float64 `json:"meanPRsPerDay"`
	PeakPRsPerDay float64 `json:"peakPRsPerDay"`
}

// Stats is the aggregate statistics object for one event.
type Stats struct {
	TotalPRs          int                    `json:"totalPRs"`
	MergedPRs         int                    `json:"mergedPRs"`
	TotalIssues       int                    `json:"totalIssues"`
	ClosedIssues      int                    `json:"closedIssues"`
	ParticipantCount  int                    `json:"participantCount"`
	Leaderboard       []*Participant         `json:"leaderboard"`
	ReviewLeaderboard []*Participant         `json:"reviewLeaderboard"`
	RepoStats         map[string]*RepoStat   `json:"repoStats"`
	DailyActivity     map[string]*DailyCount `json:"dailyActivity"`
	DailyMergedPRs    map[string]int         `json:"dailyMergedPRs"`
	DailySummary      DailySummary           `json:"dailySummary"`
	RepoData          []RepoMetadata         `json:"repoData"`
}

// Snapshot is the persisted output for one event.
type Snapshot struct {
	LastUpdated  string   `json:"lastUpdated"`
	Slug         string   `json:"slug"`
	Name         string   `json:"name"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
	Repositories []string `json:"repositories"`
	Stats        *Stats   `json:"stats"`
}

// SummaryEntry is one event's identity in the global summary document.
type SummaryEntry struct {
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Summary is the global summary document listing all known events.
type Summary struct {
	LastUpdated   string         `json:"lastUpdated"`
	Repositories  int            `json:"repositories"`
	HackathonName string         `json:"hackathonName"`
	StartTime     string         `json:"startTime"`
	EndTime       string         `json:"endTime"`
	Hackathons    []SummaryEntry `json:"hackathons"`
}

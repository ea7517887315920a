// Package store reads and writes the JSON documents the pipeline
// produces: one snapshot per event plus a global summary.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
)

// SnapshotStore persists snapshots under dir as <slug>.json and the
// global summary at summaryPath. The pipeline is the only writer for
// the duration of a run.
type SnapshotStore struct {
	dir         string
	summaryPath string
	logger      *slog.Logger
}

// New creates a SnapshotStore.
func New(dir, summaryPath string, logger *slog.Logger) *SnapshotStore {
	return &SnapshotStore{dir: dir, summaryPath: summaryPath, logger: logger}
}

// Load returns the prior snapshot for slug, or nil when it is missing
// or malformed. Either way the caller falls back to a full fetch;
// neither condition is an error.
func (s *SnapshotStore) Load(slug string) *domain.Snapshot {
	data, err := os.ReadFile(s.path(slug))
	if err != nil {
		return nil
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("could not load existing snapshot",
			slog.String("slug", slug), slog.Any("error", err))
		return nil
	}
	return &snap
}

// Exists reports whether a snapshot file for slug is present.
func (s *SnapshotStore) Exists(slug string) bool {
	_, err := os.Stat(s.path(slug))
	return err == nil
}

// Save overwrites the snapshot document for the snapshot's event.
func (s *SnapshotStore) Save(snap *domain.Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.path(snap.Slug), data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// WriteSummary persists the global summary: every known event plus the
// distinct repository count across the events' explicit lists. Counts
// only explicitly configured repositories, not organization expansions.
func (s *SnapshotStore) WriteSummary(hackathons []domain.Hackathon, now time.Time) error {
	distinct := make(map[string]bool)
	for _, h := range hackathons {
		for _, repo := range h.Repositories {
			distinct[repo] = true
		}
	}

	summary := domain.Summary{
		LastUpdated:  now.Format(time.RFC3339),
		Repositories: len(distinct),
		Hackathons:   make([]domain.SummaryEntry, 0, len(hackathons)),
	}
	if len(hackathons) > 0 {
		summary.HackathonName = hackathons[0].Name
		summary.StartTime = hackathons[0].StartTime
		summary.EndTime = hackathons[0].EndTime
	}
	for _, h := range hackathons {
		summary.Hackathons = append(summary.Hackathons, domain.SummaryEntry{
			Slug:      h.Slug,
			Name:      h.Name,
			StartTime: h.StartTime,
			EndTime:   h.EndTime,
		})
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := os.WriteFile(s.summaryPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

func (s *SnapshotStore) path(slug string) string {
	return filepath.Join(s.dir, slug+".json")
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/OWASP-BLT/BLT-Hackathons/internal/domain"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/gateway"
	"github.com/OWASP-BLT/BLT-Hackathons/internal/store"
)

// Runner drives one full pipeline run: events are processed one at a
// time, and a single event's failure never aborts the rest of the run.
type Runner struct {
	fetcher gateway.Fetcher
	store   *store.SnapshotStore
	logger  *slog.Logger
	now     func() time.Time

	// orgRepos caches organization listings across events for the
	// lifetime of one run. Written at most once per organization;
	// sequential execution makes locking unnecessary.
	orgRepos map[string][]string
}

// NewRunner creates a Runner.
func NewRunner(fetcher gateway.Fetcher, snapshots *store.SnapshotStore, logger *slog.Logger) *Runner {
	return &Runner{
		fetcher:  fetcher,
		store:    snapshots,
		logger:   logger,
		now:      time.Now,
		orgRepos: make(map[string][]string),
	}
}

// Run processes every configured event sequentially and then writes
// the global summary document. Failures are logged, not propagated;
// the only process-fatal conditions live in config loading.
func (r *Runner) Run(ctx context.Context, hackathons []domain.Hackathon) {
	for _, h := range hackathons {
		r.runOne(ctx, h)
	}

	if err := r.store.WriteSummary(hackathons, r.now().UTC()); err != nil {
		r.logger.Error("failed to write summary", slog.Any("error", err))
	}
}

// runOne processes a single event behind the per-event failure
// boundary.
func (r *Runner) runOne(ctx context.Context, h domain.Hackathon) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("failed to process hackathon",
				slog.String("slug", h.Slug), slog.Any("panic", rec))
		}
	}()

	// Concluded events keep their historical data static: once a
	// snapshot exists, no further requests are made for them. An
	// ended event with no snapshot yet is finalized exactly once.
	if h.Ended(r.now()) {
		if r.store.Exists(h.Slug) {
			r.logger.Info("skipping ended hackathon",
				slog.String("slug", h.Slug), slog.String("endTime", h.EndTime))
			return
		}
		r.logger.Warn("no snapshot for ended hackathon, processing once",
			slog.String("slug", h.Slug))
	}

	r.logger.Info("processing hackathon", slog.String("name", h.Name))

	repositories := r.resolveRepositories(ctx, h)
	if len(repositories) == 0 {
		r.logger.Warn("no repositories found for hackathon", slog.String("name", h.Name))
		return
	}

	snapshot := r.processHackathon(ctx, h, repositories)
	if err := r.store.Save(snapshot); err != nil {
		r.logger.Error("failed to save snapshot",
			slog.String("slug", h.Slug), slog.Any("error", err))
		return
	}
	r.logger.Info("saved snapshot", slog.String("slug", h.Slug))
}

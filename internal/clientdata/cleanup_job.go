package clientdata

import (
	"github.com/rs/zerolog"
)

// CleanupJob prunes quotes, price history and benchmark rows once their stale
// window has passed.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_prune").Logger(),
	}
}

func (j *CleanupJob) Run() error {
	report, err := j.repo.Prune()
	if err != nil {
		j.log.Error().Err(err).Msg("Cache prune failed")
		return err
	}

	level := zerolog.DebugLevel
	if report.Total() > 0 {
		level = zerolog.InfoLevel
	}
	j.log.WithLevel(level).
		Int64("quotes", report.Quotes).
		Int64("price_history", report.PriceHistory).
		Int64("benchmarks", report.Benchmarks).
		Msg("Cache pruned")

	return nil
}

func (j *CleanupJob) Name() string {
	return "cache_prune"
}

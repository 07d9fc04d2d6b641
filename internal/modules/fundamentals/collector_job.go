package fundamentals

import (
	"context"
	"time"

	"github.com/aristath/stockwatch/internal/events"
	"github.com/rs/zerolog"
)

// collectTimeout bounds one collector run. Fundamentals are one provider call
// per ticker but the info endpoint is slow.
const collectTimeout = 5 * time.Minute

// CollectorJob stores a daily fundamentals snapshot of every active instrument.
type CollectorJob struct {
	service *Service
	events  events.Emitter
	log     zerolog.Logger
}

// NewCollectorJob creates a new fundamentals collector job.
func NewCollectorJob(service *Service, emitter events.Emitter, log zerolog.Logger) *CollectorJob {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &CollectorJob{
		service: service,
		events:  emitter,
		log:     log.With().Str("job", "fundamentals_collector").Logger(),
	}
}

// Run implements scheduler.Job.
func (j *CollectorJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	start := time.Now()
	result, err := j.service.CaptureAll(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Fundamentals collection failed")
		return err
	}

	j.log.Info().
		Int("captured", result.Captured).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Fundamentals collection completed")

	j.events.Emit(events.FundamentalsUpdated, "fundamentals", map[string]interface{}{
		"captured": result.Captured,
		"failed":   result.Failed,
		"at":       time.Now().UTC(),
	})
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CollectorJob) Name() string {
	return "fundamentals_collector"
}

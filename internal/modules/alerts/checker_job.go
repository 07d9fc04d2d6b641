package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// checkTimeout bounds one checker run.
const checkTimeout = 2 * time.Minute

// CheckerJob evaluates active alerts on a schedule.
type CheckerJob struct {
	service *Service
	log     zerolog.Logger
}

// NewCheckerJob creates a new alert checker job.
func NewCheckerJob(service *Service, log zerolog.Logger) *CheckerJob {
	return &CheckerJob{
		service: service,
		log:     log.With().Str("job", "alert_checker").Logger(),
	}
}

// Run implements scheduler.Job.
func (j *CheckerJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	summary, err := j.service.CheckActive(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Alert check failed")
		return err
	}

	j.log.Info().
		Int("checked", summary.Checked).
		Int("triggered", summary.Triggered).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("Alert check completed")
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CheckerJob) Name() string {
	return "alert_checker"
}

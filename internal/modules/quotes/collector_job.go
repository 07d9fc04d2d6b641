package quotes

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// collectTimeout bounds one collector run.
const collectTimeout = 2 * time.Minute

// CollectorJob refreshes the cached quotes of every active instrument.
type CollectorJob struct {
	instruments *instruments.Repository
	service     *Service
	events      events.Emitter
	log         zerolog.Logger
}

// NewCollectorJob creates a new price collector job.
func NewCollectorJob(instrumentRepo *instruments.Repository, service *Service, emitter events.Emitter, log zerolog.Logger) *CollectorJob {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &CollectorJob{
		instruments: instrumentRepo,
		service:     service,
		events:      emitter,
		log:         log.With().Str("job", "price_collector").Logger(),
	}
}

// CollectResult summarizes one collector run.
type CollectResult struct {
	Collected int      `json:"collected"`
	Failed    []string `json:"failed"`
}

// Collect refreshes quotes for all active instruments.
func (j *CollectorJob) Collect(ctx context.Context) (*CollectResult, error) {
	list, err := j.instruments.List(ctx, instruments.ListFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	result := &CollectResult{Failed: []string{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(batchWorkers)
	for _, inst := range list {
		ticker := inst.Ticker
		g.Go(func() error {
			q, err := j.service.Refresh(ctx, ticker)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || q.Stale {
				j.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to refresh quote")
				result.Failed = append(result.Failed, ticker)
				return nil
			}
			result.Collected++
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

// Run implements scheduler.Job.
func (j *CollectorJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	start := time.Now()
	result, err := j.Collect(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Price collection failed")
		return err
	}

	j.log.Info().
		Int("collected", result.Collected).
		Int("failed", len(result.Failed)).
		Dur("duration", time.Since(start)).
		Msg("Price collection completed")

	j.events.Emit(events.PricesUpdated, "quotes", map[string]interface{}{
		"collected": result.Collected,
		"failed":    result.Failed,
		"at":        time.Now().UTC(),
	})
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CollectorJob) Name() string {
	return "price_collector"
}

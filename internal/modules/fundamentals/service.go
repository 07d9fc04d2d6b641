package fundamentals

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultLimit is the number of snapshots List returns when none is asked for.
	DefaultLimit = 30
	// MaxLimit bounds List.
	MaxLimit = 365

	captureWorkers = 5
	sourceName     = "yahoo"
)

// Source provides current fundamentals for a ticker.
type Source interface {
	Fundamentals(ctx context.Context, ticker string) (*domain.Fundamentals, error)
}

// Service implements fundamentals history use cases.
type Service struct {
	repo        *Repository
	instruments *instruments.Repository
	source      Source
	events      events.Emitter
	today       func() domain.Date
	log         zerolog.Logger
}

// NewService creates a fundamentals service.
func NewService(repo *Repository, instrumentRepo *instruments.Repository, source Source, emitter events.Emitter, log zerolog.Logger) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		repo:        repo,
		instruments: instrumentRepo,
		source:      source,
		events:      emitter,
		today:       domain.Today,
		log:         log.With().Str("service", "fundamentals").Logger(),
	}
}

func (s *Service) instrument(ctx context.Context, ticker string) (*domain.Instrument, error) {
	ticker = domain.NormalizeTicker(ticker)
	inst, err := s.instruments.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, fmt.Errorf("instrument %s: %w", ticker, domain.ErrNotFound)
	}
	return inst, nil
}

// List returns up to limit snapshots for ticker, newest first. A zero limit
// means DefaultLimit.
func (s *Service) List(ctx context.Context, ticker string, limit int) ([]Snapshot, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, domain.NewValidationError("limit", "must be between 1 and %d", MaxLimit)
	}
	inst, err := s.instrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, inst.ID, limit)
}

// Latest returns the newest snapshot for ticker.
func (s *Service) Latest(ctx context.Context, ticker string) (*Snapshot, error) {
	inst, err := s.instrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	snap, err := s.repo.Latest(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("fundamentals for %s: %w", inst.Ticker, domain.ErrNotFound)
	}
	return snap, nil
}

// Compare reports how each metric moved between the snapshots of date1 and
// date2. Metrics missing on either date are left out; change_percent is null
// when the date1 value is zero.
func (s *Service) Compare(ctx context.Context, ticker string, date1, date2 domain.Date) (*Comparison, error) {
	inst, err := s.instrument(ctx, ticker)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.GetByDate(ctx, inst.ID, date1)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("fundamentals for %s on %s: %w", inst.Ticker, date1, domain.ErrNotFound)
	}
	b, err := s.repo.GetByDate(ctx, inst.ID, date2)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("fundamentals for %s on %s: %w", inst.Ticker, date2, domain.ErrNotFound)
	}

	return compare(inst.Ticker, a, b), nil
}

// Capture fetches the current fundamentals for ticker and stores them as
// today's snapshot.
func (s *Service) Capture(ctx context.Context, ticker string) (*Snapshot, error) {
	inst, err := s.instrument(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.capture(ctx, inst)
}

func (s *Service) capture(ctx context.Context, inst *domain.Instrument) (*Snapshot, error) {
	f, err := s.source.Fundamentals(ctx, inst.Ticker)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		InstrumentID: inst.ID,
		Ticker:       inst.Ticker,
		Date:         s.today(),
		Fundamentals: *f,
		Source:       sourceName,
	}
	if err := s.repo.Upsert(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// CaptureResult summarizes a CaptureAll run.
type CaptureResult struct {
	Captured int      `json:"captured"`
	Failed   []string `json:"failed"`
}

// CaptureAll snapshots every active instrument. Provider failures are
// collected per ticker and do not stop the run.
func (s *Service) CaptureAll(ctx context.Context) (*CaptureResult, error) {
	list, err := s.instruments.List(ctx, instruments.ListFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	result := &CaptureResult{Failed: []string{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(captureWorkers)
	for i := range list {
		inst := &list[i]
		g.Go(func() error {
			_, err := s.capture(ctx, inst)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Str("ticker", inst.Ticker).Msg("Failed to capture fundamentals")
				result.Failed = append(result.Failed, inst.Ticker)
				return nil
			}
			result.Captured++
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

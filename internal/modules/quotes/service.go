// Package quotes serves market quote snapshots, price history and analysis
// through the client-data cache.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/clients/yahoo"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/scoring"
	"github.com/aristath/stockwatch/internal/modules/scoring/scorers"
	"github.com/aristath/stockwatch/pkg/formulas"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultPeriod is the history period used when none is requested.
const DefaultPeriod = "6mo"

// batchWorkers bounds concurrent provider calls in Batch.
const batchWorkers = 10

// MarketData is the upstream quote and history provider.
type MarketData interface {
	Quote(ctx context.Context, ticker string) (*domain.Quote, error)
	History(ctx context.Context, ticker, period string) ([]domain.PriceBar, error)
}

// Service reads quotes cache-first. Fresh cache entries are served without a
// provider call; when the provider fails, a stale entry is served instead.
type Service struct {
	market   MarketData
	cache    *clientdata.Repository
	quoteTTL time.Duration
	log      zerolog.Logger
}

// NewService creates a quote service. A zero quoteTTL uses clientdata.TTLQuote.
func NewService(market MarketData, cache *clientdata.Repository, quoteTTL time.Duration, log zerolog.Logger) *Service {
	if quoteTTL <= 0 {
		quoteTTL = clientdata.TTLQuote
	}
	return &Service{
		market:   market,
		cache:    cache,
		quoteTTL: quoteTTL,
		log:      log.With().Str("service", "quotes").Logger(),
	}
}

// Quote returns the snapshot for ticker.
func (s *Service) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	ticker = domain.NormalizeTicker(ticker)

	var cached domain.Quote
	if ok, err := s.cache.GetIfFresh(clientdata.TableQuotes, ticker, &cached); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read quote cache")
	} else if ok {
		return &cached, nil
	}

	return s.fetch(ctx, ticker)
}

// Refresh bypasses the fresh cache, falling back to a stale entry on failure.
func (s *Service) Refresh(ctx context.Context, ticker string) (*domain.Quote, error) {
	return s.fetch(ctx, domain.NormalizeTicker(ticker))
}

func (s *Service) fetch(ctx context.Context, ticker string) (*domain.Quote, error) {
	quote, err := s.market.Quote(ctx, ticker)
	if err == nil {
		if storeErr := s.cache.Store(clientdata.TableQuotes, ticker, quote, s.quoteTTL); storeErr != nil {
			s.log.Warn().Err(storeErr).Str("ticker", ticker).Msg("Failed to cache quote")
		}
		return quote, nil
	}

	var stale domain.Quote
	if ok, cacheErr := s.cache.Get(clientdata.TableQuotes, ticker, &stale); cacheErr == nil && ok {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote provider failed, serving stale quote")
		stale.Stale = true
		return &stale, nil
	}
	return nil, unavailable(ticker, err)
}

// CurrentPrice returns the last price of ticker.
func (s *Service) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	q, err := s.Quote(ctx, ticker)
	if err != nil {
		return 0, err
	}
	return q.Price, nil
}

// Batch fetches quotes concurrently. Tickers without a quote are absent from
// the result.
func (s *Service) Batch(ctx context.Context, tickers []string) map[string]*domain.Quote {
	results := make([]*domain.Quote, len(tickers))

	var g errgroup.Group
	g.SetLimit(batchWorkers)
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			q, err := s.Quote(ctx, ticker)
			if err != nil {
				s.log.Debug().Err(err).Str("ticker", ticker).Msg("No quote in batch")
				return nil
			}
			results[i] = q
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*domain.Quote, len(tickers))
	for i, q := range results {
		if q != nil {
			out[domain.NormalizeTicker(tickers[i])] = q
		}
	}
	return out
}

// History returns daily bars for ticker over period, oldest first.
func (s *Service) History(ctx context.Context, ticker, period string) ([]domain.PriceBar, error) {
	if !yahoo.ValidPeriods[period] {
		return nil, domain.NewValidationError("period", "unsupported period %q, use one of 1mo, 3mo, 6mo, 1y, 2y, 5y, max", period)
	}
	ticker = domain.NormalizeTicker(ticker)
	key := ticker + ":" + period

	var bars []domain.PriceBar
	if ok, err := s.cache.GetIfFresh(clientdata.TablePriceHistory, key, &bars); err == nil && ok {
		return bars, nil
	}

	bars, err := s.market.History(ctx, ticker, period)
	if err == nil && len(bars) > 0 {
		if storeErr := s.cache.Store(clientdata.TablePriceHistory, key, bars, clientdata.TTLPriceHistory); storeErr != nil {
			s.log.Warn().Err(storeErr).Str("key", key).Msg("Failed to cache price history")
		}
		return bars, nil
	}

	var stale []domain.PriceBar
	if ok, cacheErr := s.cache.Get(clientdata.TablePriceHistory, key, &stale); cacheErr == nil && ok {
		s.log.Warn().Err(err).Str("key", key).Msg("History provider failed, serving stale bars")
		return stale, nil
	}
	if err == nil {
		err = fmt.Errorf("empty history: %w", domain.ErrUnavailable)
	}
	return nil, unavailable(ticker, err)
}

// CloseOn returns the last close of ticker on or before day. Closes before
// today are cached for clientdata.TTLHistoricalClose.
func (s *Service) CloseOn(ctx context.Context, ticker string, day domain.Date) (float64, error) {
	ticker = domain.NormalizeTicker(ticker)
	key := "close:" + ticker + ":" + day.String()

	var price float64
	if ok, err := s.cache.GetIfFresh(clientdata.TablePriceHistory, key, &price); err == nil && ok {
		return price, nil
	}

	// Look back a week so weekends and holidays still find a close.
	lookback := day.AddDays(-7)
	bars, err := s.History(ctx, ticker, yahoo.PeriodCovering(lookback.DaysUntil(domain.Today())))
	if err != nil {
		return 0, err
	}

	idx := sort.Search(len(bars), func(i int) bool {
		return domain.DateOf(bars[i].Date).After(day)
	})
	for i := idx - 1; i >= 0; i-- {
		if bars[i].Close <= 0 {
			continue
		}
		price = bars[i].Close
		// Today's close is still moving.
		if day.Before(domain.Today()) {
			if storeErr := s.cache.Store(clientdata.TablePriceHistory, key, price, clientdata.TTLHistoricalClose); storeErr != nil {
				s.log.Warn().Err(storeErr).Str("key", key).Msg("Failed to cache close")
			}
		}
		return price, nil
	}
	return 0, fmt.Errorf("no close for %s on %s: %w", ticker, day, domain.ErrUnavailable)
}

// Indicators are computed from the closes of a history window. Each is nil
// when the window is too short.
type Indicators struct {
	SMA20      *float64 `json:"sma_20"`
	SMA50      *float64 `json:"sma_50"`
	RSI14      *float64 `json:"rsi_14"`
	Volatility *float64 `json:"volatility"`
}

// ComputeIndicators derives Indicators from bars.
func ComputeIndicators(bars []domain.PriceBar) Indicators {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			closes = append(closes, b.Close)
		}
	}
	return Indicators{
		SMA20:      round2(formulas.SMA(closes, 20)),
		SMA50:      round2(formulas.SMA(closes, 50)),
		RSI14:      round2(formulas.RSI(closes, 14)),
		Volatility: round2(formulas.AnnualizedVolatility(closes)),
	}
}

// HistoryReport is the history endpoint payload.
type HistoryReport struct {
	Ticker     string            `json:"ticker"`
	Period     string            `json:"period"`
	Data       []domain.PriceBar `json:"data"`
	Count      int               `json:"count"`
	Indicators Indicators        `json:"indicators"`
}

// HistoryReport returns bars plus indicators.
func (s *Service) HistoryReport(ctx context.Context, ticker, period string) (*HistoryReport, error) {
	if period == "" {
		period = DefaultPeriod
	}
	bars, err := s.History(ctx, ticker, period)
	if err != nil {
		return nil, err
	}
	return &HistoryReport{
		Ticker:     domain.NormalizeTicker(ticker),
		Period:     period,
		Data:       bars,
		Count:      len(bars),
		Indicators: ComputeIndicators(bars),
	}, nil
}

// QuoteAnalysis pairs a snapshot with its rule-based analysis.
type QuoteAnalysis struct {
	Quote    *domain.Quote    `json:"quote"`
	Analysis scoring.Analysis `json:"analysis"`
}

// Analyze fetches the quote and scores it.
func (s *Service) Analyze(ctx context.Context, ticker string) (*QuoteAnalysis, error) {
	q, err := s.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return &QuoteAnalysis{Quote: q, Analysis: scorers.Analyze(*q)}, nil
}

func unavailable(ticker string, err error) error {
	if errors.Is(err, domain.ErrUnavailable) {
		return fmt.Errorf("quote for %s: %w", ticker, err)
	}
	return fmt.Errorf("quote for %s: %v: %w", ticker, err, domain.ErrUnavailable)
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

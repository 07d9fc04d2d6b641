package benchmark

import (
	"context"
	"fmt"
	"math"

	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/clients/yahoo"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
)

// Provider returns a benchmark's return in percent over [start, end]. A nil
// return with a nil error means no data for the period.
type Provider interface {
	Key() string
	Return(ctx context.Context, start, end domain.Date) (*float64, error)
}

// HistorySource supplies daily bars, oldest first.
type HistorySource interface {
	History(ctx context.Context, ticker, period string) ([]domain.PriceBar, error)
}

// IbovespaSymbol is the B3 index symbol on Yahoo.
const IbovespaSymbol = "^BVSP"

// Index measures an equity index by its first and last close in the period.
type Index struct {
	key     string
	symbol  string
	history HistorySource
	today   func() domain.Date
}

// NewIbovespa creates the Ibovespa benchmark.
func NewIbovespa(history HistorySource) *Index {
	return &Index{key: "ibovespa", symbol: IbovespaSymbol, history: history, today: domain.Today}
}

// Key implements Provider.
func (i *Index) Key() string {
	return i.key
}

// Return implements Provider. Fewer than two closes in the window yield nil.
func (i *Index) Return(ctx context.Context, start, end domain.Date) (*float64, error) {
	bars, err := i.history.History(ctx, i.symbol, yahoo.PeriodCovering(start.DaysUntil(i.today())))
	if err != nil {
		return nil, fmt.Errorf("%s history: %w", i.symbol, err)
	}

	var first, last float64
	n := 0
	for _, b := range bars {
		d := domain.DateOf(b.Date)
		if d.Before(start) || d.After(end) || b.Close <= 0 {
			continue
		}
		if n == 0 {
			first = b.Close
		}
		last = b.Close
		n++
	}
	if n < 2 {
		return nil, nil
	}

	r := (last/first - 1) * 100
	return &r, nil
}

// DefaultCDIAnnualRate is the CDI rate in percent per year used when none is
// configured.
const DefaultCDIAnnualRate = 13.25

// CDI compounds a fixed annual CDI rate over business days.
type CDI struct {
	AnnualRate float64
}

// NewCDI creates the CDI benchmark.
func NewCDI(annualRate float64) *CDI {
	return &CDI{AnnualRate: annualRate}
}

// Key implements Provider.
func (c *CDI) Key() string {
	return "cdi"
}

// Return implements Provider. Business days are approximated as 70% of
// calendar days; the daily rate is the 252nd root of the annual one.
func (c *CDI) Return(_ context.Context, start, end domain.Date) (*float64, error) {
	r := CDIReturn(c.AnnualRate, start.DaysUntil(end))
	return &r, nil
}

// CDIReturn is the percent return of annualRate over days calendar days,
// rounded to two places.
func CDIReturn(annualRate float64, days int) float64 {
	if days <= 0 {
		return 0
	}
	businessDays := int(float64(days) * 0.7)
	daily := math.Pow(1+annualRate/100, 1.0/252) - 1
	return round2((math.Pow(1+daily, float64(businessDays)) - 1) * 100)
}

// Cached memoizes a Provider's returns in the client-data cache. Missing data
// is not cached so it is retried on the next request.
type Cached struct {
	Provider
	cache *clientdata.Repository
	log   zerolog.Logger
}

// NewCached wraps p with the benchmark cache.
func NewCached(p Provider, cache *clientdata.Repository, log zerolog.Logger) *Cached {
	return &Cached{
		Provider: p,
		cache:    cache,
		log:      log.With().Str("benchmark", p.Key()).Logger(),
	}
}

// Return implements Provider.
func (c *Cached) Return(ctx context.Context, start, end domain.Date) (*float64, error) {
	key := fmt.Sprintf("%s:%s:%s", c.Key(), start, end)

	var cached float64
	if ok, err := c.cache.GetIfFresh(clientdata.TableBenchmarks, key, &cached); err != nil {
		c.log.Warn().Err(err).Msg("Benchmark cache read failed")
	} else if ok {
		return &cached, nil
	}

	r, err := c.Provider.Return(ctx, start, end)
	if err != nil || r == nil {
		return r, err
	}
	if err := c.cache.Store(clientdata.TableBenchmarks, key, *r, clientdata.TTLBenchmark); err != nil {
		c.log.Warn().Err(err).Msg("Benchmark cache write failed")
	}
	return r, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

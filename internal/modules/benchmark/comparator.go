// Package benchmark compares the portfolio's return with market benchmarks.
package benchmark

import (
	"context"
	"fmt"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultPeriodDays is the comparison window when none is requested.
const DefaultPeriodDays = 365

// MaxPeriodDays caps the window at a hundred years.
const MaxPeriodDays = 36500

// Ledger supplies every transaction in fold order.
type Ledger interface {
	AllTransactions(ctx context.Context) ([]domain.Transaction, error)
}

// PriceProvider supplies live prices.
type PriceProvider interface {
	CurrentPrice(ctx context.Context, ticker string) (float64, error)
}

// CloseProvider supplies the last close on or before a day.
type CloseProvider interface {
	CloseOn(ctx context.Context, ticker string, day domain.Date) (float64, error)
}

// Period is the compared window.
type Period struct {
	Start domain.Date `json:"start"`
	End   domain.Date `json:"end"`
	Days  int         `json:"days"`
}

// PortfolioReturn is the portfolio side of a comparison.
type PortfolioReturn struct {
	Return       float64 `json:"return"`
	ValueAtStart float64 `json:"value_at_start"`
	CurrentValue float64 `json:"current_value"`
}

// Result is one benchmark's side. Fields are null when the benchmark had no
// data for the period.
type Result struct {
	Return      *float64 `json:"return"`
	VsPortfolio *float64 `json:"vs_portfolio"`
	Beats       *bool    `json:"beats"`
	AnnualRate  *float64 `json:"annual_rate,omitempty"`
}

// Summary names the winner.
type Summary struct {
	BestInvestment string `json:"best_investment"`
}

// Comparison is the full benchmark report.
type Comparison struct {
	Period     Period            `json:"period"`
	Portfolio  PortfolioReturn   `json:"portfolio"`
	Benchmarks map[string]Result `json:"benchmarks"`
	Summary    Summary           `json:"summary"`
}

// Comparator builds Comparisons.
type Comparator struct {
	ledger     Ledger
	prices     PriceProvider
	closes     CloseProvider
	benchmarks []Provider
	cdiRate    float64
	today      func() domain.Date
	log        zerolog.Logger
}

// NewComparator creates a comparator. Benchmarks are reported in the given
// order, which also breaks ties between them. cdiRate is echoed as the CDI
// annual_rate.
func NewComparator(l Ledger, prices PriceProvider, closes CloseProvider, cdiRate float64, log zerolog.Logger, benchmarks ...Provider) *Comparator {
	return &Comparator{
		ledger:     l,
		prices:     prices,
		closes:     closes,
		benchmarks: benchmarks,
		cdiRate:    cdiRate,
		today:      domain.Today,
		log:        log.With().Str("service", "benchmark").Logger(),
	}
}

// Compare reports the portfolio return over the last periodDays (or since the
// first transaction, whichever is later) against every benchmark.
func (c *Comparator) Compare(ctx context.Context, periodDays int) (*Comparison, error) {
	if periodDays <= 0 {
		return nil, domain.NewValidationError("period_days", "must be positive")
	}
	if periodDays > MaxPeriodDays {
		return nil, domain.NewValidationError("period_days", "must be at most %d", MaxPeriodDays)
	}

	txns, err := c.ledger.AllTransactions(ctx)
	if err != nil {
		return nil, err
	}

	end := c.today()
	start := end.AddDays(-periodDays)
	if first := earliest(txns); first != nil && first.After(start) {
		start = *first
	}

	startValue, currentValue, err := c.values(ctx, txns, start)
	if err != nil {
		return nil, err
	}

	portfolioReturn := 0.0
	if startValue.IsPositive() {
		portfolioReturn, _ = currentValue.Sub(startValue).Div(startValue).Mul(decimal.NewFromInt(100)).Float64()
	}
	portfolioReturn = round2(portfolioReturn)

	cmp := &Comparison{
		Period: Period{Start: start, End: end, Days: start.DaysUntil(end)},
		Portfolio: PortfolioReturn{
			Return:       portfolioReturn,
			ValueAtStart: round2(startValue.InexactFloat64()),
			CurrentValue: round2(currentValue.InexactFloat64()),
		},
		Benchmarks: make(map[string]Result, len(c.benchmarks)),
		Summary:    Summary{BestInvestment: "portfolio"},
	}

	best := portfolioReturn
	for _, b := range c.benchmarks {
		r := Result{}
		if b.Key() == "cdi" {
			rate := c.cdiRate
			r.AnnualRate = &rate
		}

		ret, err := b.Return(ctx, start, end)
		if err != nil {
			c.log.Warn().Err(err).Str("benchmark", b.Key()).Msg("Benchmark unavailable")
			ret = nil
		}
		if ret != nil {
			value := round2(*ret)
			vs := round2(value - portfolioReturn)
			beats := value > portfolioReturn
			r.Return, r.VsPortfolio, r.Beats = &value, &vs, &beats
			if value > best {
				best = value
				cmp.Summary.BestInvestment = b.Key()
			}
		}
		cmp.Benchmarks[b.Key()] = r
	}

	return cmp, nil
}

// values returns the portfolio value on start and now. Holdings without a
// close or a live price are counted at cost.
func (c *Comparator) values(ctx context.Context, txns []domain.Transaction, start domain.Date) (decimal.Decimal, decimal.Decimal, error) {
	startValue, currentValue := decimal.Zero, decimal.Zero

	for ticker, history := range ledger.GroupByTicker(txns) {
		then, err := ledger.FoldUntil(ticker, history, &start)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("stored ledger for %s is inconsistent: %w", ticker, err)
		}
		if then.Open() {
			startValue = startValue.Add(c.markThen(ctx, then, start))
		}

		now, err := ledger.Fold(ticker, history)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("stored ledger for %s is inconsistent: %w", ticker, err)
		}
		if now.Open() {
			currentValue = currentValue.Add(c.markNow(ctx, now))
		}
	}

	return startValue, currentValue, nil
}

func (c *Comparator) markThen(ctx context.Context, p ledger.Position, day domain.Date) decimal.Decimal {
	if c.closes != nil {
		price, err := c.closes.CloseOn(ctx, p.Ticker, day)
		if err == nil && price > 0 {
			return p.Quantity.Mul(decimal.NewFromFloat(price))
		}
		c.log.Debug().Err(err).Str("ticker", p.Ticker).Str("day", day.String()).Msg("No historical close, using cost")
	}
	return p.CostBasis()
}

func (c *Comparator) markNow(ctx context.Context, p ledger.Position) decimal.Decimal {
	if c.prices != nil {
		price, err := c.prices.CurrentPrice(ctx, p.Ticker)
		if err == nil && price > 0 {
			return p.Quantity.Mul(decimal.NewFromFloat(price))
		}
		c.log.Warn().Err(err).Str("ticker", p.Ticker).Msg("No live price, using cost")
	}
	return p.CostBasis()
}

func earliest(txns []domain.Transaction) *domain.Date {
	var first *domain.Date
	for i := range txns {
		if first == nil || txns[i].Date.Before(*first) {
			d := txns[i].Date
			first = &d
		}
	}
	return first
}

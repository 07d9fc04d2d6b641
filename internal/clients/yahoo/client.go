// Package yahoo fetches quotes and price history from Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	yfticker "github.com/wnjoon/go-yfinance/pkg/ticker"
)

// DefaultSuffix is appended to bare tickers (B3 listings).
const DefaultSuffix = ".SA"

// ValidPeriods are the history periods accepted by History.
var ValidPeriods = map[string]bool{
	"1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "max": true,
}

// PeriodCovering returns the shortest valid period reaching at least days
// back from today.
func PeriodCovering(days int) string {
	switch {
	case days <= 28:
		return "1mo"
	case days <= 88:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 362:
		return "1y"
	case days <= 727:
		return "2y"
	case days <= 1823:
		return "5y"
	default:
		return "max"
	}
}

// Client implements market data lookups on top of go-yfinance.
type Client struct {
	suffix string
	log    zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		suffix: DefaultSuffix,
		log:    log.With().Str("client", "yahoo").Logger(),
	}
}

// Symbol maps a local ticker to its Yahoo symbol. Indices (^BVSP) and
// tickers that already carry an exchange suffix pass through.
func (c *Client) Symbol(ticker string) string {
	ticker = domain.NormalizeTicker(ticker)
	if strings.HasPrefix(ticker, "^") || strings.Contains(ticker, ".") {
		return ticker
	}
	return ticker + c.suffix
}

// call runs fn on its own goroutine so a stuck provider cannot outlive ctx.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// Quote fetches a full market snapshot for ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	symbol := c.Symbol(ticker)

	snap, err := call(ctx, func() (snapshot, error) {
		return c.fetchSnapshot(symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	quote := assembleQuote(domain.NormalizeTicker(ticker), snap)
	if quote == nil {
		return nil, fmt.Errorf("no price for %s: %w", symbol, domain.ErrUnavailable)
	}
	return quote, nil
}

// CurrentPrice returns only the last traded price.
func (c *Client) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	symbol := c.Symbol(ticker)

	price, err := call(ctx, func() (float64, error) {
		t, err := yfticker.New(symbol)
		if err != nil {
			return 0, fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		if q, err := t.Quote(); err == nil && q != nil {
			for _, p := range []float64{q.RegularMarketPrice, q.PostMarketPrice, q.PreMarketPrice} {
				if p > 0 {
					return p, nil
				}
			}
		}
		if info, err := t.Info(); err == nil && info != nil {
			if info.CurrentPrice > 0 {
				return info.CurrentPrice, nil
			}
			if info.RegularMarketPreviousClose > 0 {
				return info.RegularMarketPreviousClose, nil
			}
		}
		return 0, domain.ErrUnavailable
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get price for %s: %w", symbol, err)
	}
	return price, nil
}

// History returns daily bars for period (see ValidPeriods), oldest first.
func (c *Client) History(ctx context.Context, ticker, period string) ([]domain.PriceBar, error) {
	if !ValidPeriods[period] {
		return nil, domain.NewValidationError("period", "unsupported period %q", period)
	}
	symbol := c.Symbol(ticker)

	bars, err := call(ctx, func() ([]domain.PriceBar, error) {
		t, err := yfticker.New(symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		raw, err := t.History(models.HistoryParams{Period: period, Interval: "1d", AutoAdjust: true})
		if err != nil {
			return nil, err
		}
		return convertBars(raw), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}

	c.log.Debug().Str("symbol", symbol).Str("period", period).Int("bars", len(bars)).Msg("Fetched history")
	return bars, nil
}

// Name returns the long (or short) company name for ticker.
func (c *Client) Name(ctx context.Context, ticker string) (string, error) {
	symbol := c.Symbol(ticker)

	return call(ctx, func() (string, error) {
		t, err := yfticker.New(symbol)
		if err != nil {
			return "", fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		info, err := t.Info()
		if err != nil {
			return "", fmt.Errorf("failed to get info for %s: %w", symbol, err)
		}
		if info != nil && info.LongName != "" {
			return info.LongName, nil
		}
		if info != nil && info.ShortName != "" {
			return info.ShortName, nil
		}
		return "", fmt.Errorf("no name for %s: %w", symbol, domain.ErrUnavailable)
	})
}

// Fundamentals fetches the current valuation and balance-sheet figures.
func (c *Client) Fundamentals(ctx context.Context, ticker string) (*domain.Fundamentals, error) {
	symbol := c.Symbol(ticker)

	f, err := call(ctx, func() (*domain.Fundamentals, error) {
		t, err := yfticker.New(symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()

		info, err := t.Info()
		if err != nil {
			return nil, err
		}
		return assembleFundamentals(info), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals for %s: %w", symbol, err)
	}
	if f == nil || f.Empty() {
		return nil, fmt.Errorf("no fundamentals for %s: %w", symbol, domain.ErrUnavailable)
	}
	return f, nil
}

// assembleFundamentals maps provider info onto Fundamentals. Zero means
// "not reported" for every field; fractions become percentages.
func assembleFundamentals(info *models.Info) *domain.Fundamentals {
	if info == nil {
		return nil
	}

	f := &domain.Fundamentals{
		Price:         nonZero(info.CurrentPrice),
		PE:            nonZero(info.TrailingPE),
		PB:            nonZero(info.PriceToBook),
		PS:            nonZero(info.PriceToSalesTrailing12Mo),
		EVEBITDA:      nonZero(info.EnterpriseToEbitda),
		DividendYield: yieldPercent(info.DividendYield),
		ROE:           percent(info.ReturnOnEquity),
		ROA:           percent(info.ReturnOnAssets),
		NetMargin:     percent(info.ProfitMargins),
		EBITMargin:    percent(info.OperatingMargins),
		CurrentRatio:  nonZero(info.CurrentRatio),
		MarketCap:     nonZero(float64(info.MarketCap)),
		NetRevenue:    nonZero(float64(info.TotalRevenue)),
		NetProfit:     nonZero(float64(info.NetIncomeToCommon)),
		EBITDA:        nonZero(float64(info.Ebitda)),
	}
	if f.Price == nil {
		f.Price = nonZero(info.RegularMarketPreviousClose)
	}
	if info.Ebitda > 0 && info.TotalDebt > 0 {
		f.DebtEBITDA = nonZero(float64(info.TotalDebt) / float64(info.Ebitda))
	}
	return f
}

func nonZero(v float64) *float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func percent(v float64) *float64 {
	return nonZero(v * 100)
}

// yieldPercent accepts both a fraction and a percentage. Older provider
// payloads report the former, newer ones the latter.
func yieldPercent(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	if v < 1 {
		v *= 100
	}
	return &v
}

// snapshot collects the raw provider fields a Quote is built from.
type snapshot struct {
	name          string
	price         float64
	previousClose float64
	peRatio       float64
	dividendYield float64
	marketCap     float64
	bars          []domain.PriceBar
}

func (c *Client) fetchSnapshot(symbol string) (snapshot, error) {
	var s snapshot

	t, err := yfticker.New(symbol)
	if err != nil {
		return s, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	if q, err := t.Quote(); err == nil && q != nil {
		s.price = q.RegularMarketPrice
		if s.price <= 0 && q.PostMarketPrice > 0 {
			s.price = q.PostMarketPrice
		}
		if s.price <= 0 && q.PreMarketPrice > 0 {
			s.price = q.PreMarketPrice
		}
	}

	if info, err := t.Info(); err == nil && info != nil {
		s.name = info.LongName
		if s.name == "" {
			s.name = info.ShortName
		}
		if s.price <= 0 {
			s.price = info.CurrentPrice
		}
		s.previousClose = info.RegularMarketPreviousClose
		s.peRatio = float64(info.TrailingPE)
		s.dividendYield = float64(info.DividendYield)
		s.marketCap = float64(info.MarketCap)
	} else if err != nil {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("Info lookup failed")
	}

	if raw, err := t.History(models.HistoryParams{Period: "1y", Interval: "1d", AutoAdjust: true}); err == nil {
		s.bars = convertBars(raw)
	} else {
		c.log.Debug().Err(err).Str("symbol", symbol).Msg("History lookup failed")
	}

	return s, nil
}

func convertBars(raw []models.Bar) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(raw))
	for _, b := range raw {
		if b.Close <= 0 {
			continue
		}
		bars = append(bars, domain.PriceBar{
			Date:     b.Date,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   int64(b.Volume),
		})
	}
	return bars
}

// assembleQuote derives a Quote from raw fields. Missing session data is
// filled from the most recent daily bars. Returns nil when no price exists.
func assembleQuote(ticker string, s snapshot) *domain.Quote {
	q := &domain.Quote{
		Ticker:        ticker,
		Name:          s.name,
		Price:         s.price,
		PreviousClose: s.previousClose,
		UpdatedAt:     time.Now().UTC(),
	}

	if n := len(s.bars); n > 0 {
		last := s.bars[n-1]
		if q.Price <= 0 {
			q.Price = last.Close
		}
		q.Open, q.High, q.Low, q.Volume = last.Open, last.High, last.Low, last.Volume
		if q.PreviousClose <= 0 && n > 1 {
			q.PreviousClose = s.bars[n-2].Close
		}

		high, low := math.Inf(-1), math.Inf(1)
		for _, b := range s.bars {
			high = math.Max(high, b.High)
			low = math.Min(low, b.Low)
		}
		q.FiftyTwoWeekHigh = &high
		q.FiftyTwoWeekLow = &low
	}

	if q.Price <= 0 {
		return nil
	}

	if q.PreviousClose > 0 {
		q.Change = q.Price - q.PreviousClose
		q.ChangePercent = q.Change / q.PreviousClose * 100
	}
	if s.peRatio > 0 {
		pe := s.peRatio
		q.PERatio = &pe
	}
	q.DividendYield = yieldPercent(s.dividendYield)
	if s.marketCap > 0 {
		mc := s.marketCap
		q.MarketCap = &mc
	}

	return q
}

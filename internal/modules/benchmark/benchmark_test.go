package benchmark

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/domain"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticLedger []domain.Transaction

func (l staticLedger) AllTransactions(context.Context) ([]domain.Transaction, error) {
	return l, nil
}

type mockPrices struct {
	mock.Mock
}

func (m *mockPrices) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(float64), args.Error(1)
}

type mockCloses struct {
	mock.Mock
}

func (m *mockCloses) CloseOn(ctx context.Context, ticker string, day domain.Date) (float64, error) {
	args := m.Called(ctx, ticker, day)
	return args.Get(0).(float64), args.Error(1)
}

type fixedProvider struct {
	key   string
	value *float64
	err   error
	calls int
}

func (p *fixedProvider) Key() string { return p.key }

func (p *fixedProvider) Return(context.Context, domain.Date, domain.Date) (*float64, error) {
	p.calls++
	return p.value, p.err
}

func ptr(f float64) *float64 { return &f }

func buy(ticker, qty, price string, date domain.Date) domain.Transaction {
	return domain.Transaction{
		Ticker: ticker, Type: domain.TransactionBuy,
		Quantity: decimal.RequireFromString(qty), Price: decimal.RequireFromString(price), Date: date,
	}
}

var today = domain.NewDate(2024, time.June, 30)

func newComparator(l Ledger, prices PriceProvider, closes CloseProvider, providers ...Provider) *Comparator {
	c := NewComparator(l, prices, closes, DefaultCDIAnnualRate, zerolog.Nop(), providers...)
	c.today = func() domain.Date { return today }
	return c
}

func TestCompare_PortfolioAgainstBenchmarks(t *testing.T) {
	firstBuy := domain.NewDate(2024, time.January, 10)
	l := staticLedger{buy("PETR4", "100", "10", firstBuy)}

	prices := &mockPrices{}
	prices.On("CurrentPrice", mock.Anything, "PETR4").Return(12.0, nil)
	closes := &mockCloses{}
	closes.On("CloseOn", mock.Anything, "PETR4", firstBuy).Return(10.0, nil)

	ibov := &fixedProvider{key: "ibovespa", value: ptr(10)}
	cdi := &fixedProvider{key: "cdi", value: ptr(25.456)}

	cmp, err := newComparator(l, prices, closes, ibov, cdi).Compare(context.Background(), 365)
	require.NoError(t, err)

	assert.Equal(t, firstBuy, cmp.Period.Start)
	assert.Equal(t, today, cmp.Period.End)
	assert.Equal(t, firstBuy.DaysUntil(today), cmp.Period.Days)

	assert.Equal(t, 20.0, cmp.Portfolio.Return)
	assert.Equal(t, 1000.0, cmp.Portfolio.ValueAtStart)
	assert.Equal(t, 1200.0, cmp.Portfolio.CurrentValue)

	ib := cmp.Benchmarks["ibovespa"]
	require.NotNil(t, ib.Return)
	assert.Equal(t, 10.0, *ib.Return)
	assert.Equal(t, -10.0, *ib.VsPortfolio)
	assert.False(t, *ib.Beats)
	assert.Nil(t, ib.AnnualRate)

	c := cmp.Benchmarks["cdi"]
	assert.Equal(t, 25.46, *c.Return)
	assert.Equal(t, 5.46, *c.VsPortfolio)
	assert.True(t, *c.Beats)
	require.NotNil(t, c.AnnualRate)
	assert.Equal(t, DefaultCDIAnnualRate, *c.AnnualRate)

	assert.Equal(t, "cdi", cmp.Summary.BestInvestment)
}

func TestCompare_UnavailableBenchmarkIsNull(t *testing.T) {
	l := staticLedger{buy("PETR4", "100", "10", domain.NewDate(2024, time.January, 10))}
	prices := &mockPrices{}
	prices.On("CurrentPrice", mock.Anything, "PETR4").Return(11.0, nil)

	ibov := &fixedProvider{key: "ibovespa", err: errors.New("yahoo down")}
	empty := &fixedProvider{key: "other"}
	cdi := &fixedProvider{key: "cdi", value: ptr(5)}

	cmp, err := newComparator(l, prices, nil, ibov, empty, cdi).Compare(context.Background(), 365)
	require.NoError(t, err)

	for _, key := range []string{"ibovespa", "other"} {
		r := cmp.Benchmarks[key]
		assert.Nil(t, r.Return, key)
		assert.Nil(t, r.VsPortfolio, key)
		assert.Nil(t, r.Beats, key)
	}

	// No closes: the start is valued at cost.
	assert.Equal(t, 10.0, cmp.Portfolio.Return)
	require.NotNil(t, cmp.Benchmarks["cdi"].Return)
	assert.Equal(t, -5.0, *cmp.Benchmarks["cdi"].VsPortfolio)
	assert.Equal(t, "portfolio", cmp.Summary.BestInvestment)
}

func TestCompare_TieGoesToPortfolio(t *testing.T) {
	cmp, err := newComparator(staticLedger{}, nil, nil, &fixedProvider{key: "cdi", value: ptr(0)}).
		Compare(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cmp.Portfolio.Return)
	assert.Equal(t, today.AddDays(-30), cmp.Period.Start)
	assert.False(t, *cmp.Benchmarks["cdi"].Beats)
	assert.Equal(t, "portfolio", cmp.Summary.BestInvestment)
}

func TestCompare_StartStateExcludesLaterTrades(t *testing.T) {
	start := today.AddDays(-90)
	l := staticLedger{
		buy("VALE3", "10", "50", domain.NewDate(2023, time.January, 5)),
		buy("VALE3", "10", "70", today.AddDays(-10)),
	}
	prices := &mockPrices{}
	prices.On("CurrentPrice", mock.Anything, "VALE3").Return(66.0, nil)
	closes := &mockCloses{}
	closes.On("CloseOn", mock.Anything, "VALE3", start).Return(60.0, nil)

	cmp, err := newComparator(l, prices, closes).Compare(context.Background(), 90)
	require.NoError(t, err)

	assert.Equal(t, start, cmp.Period.Start)
	assert.Equal(t, 600.0, cmp.Portfolio.ValueAtStart)
	assert.Equal(t, 1320.0, cmp.Portfolio.CurrentValue)
	assert.Equal(t, 120.0, cmp.Portfolio.Return)
	closes.AssertExpectations(t)
}

func TestCompare_RejectsBadPeriod(t *testing.T) {
	for _, days := range []int{0, -1, MaxPeriodDays + 1, math.MaxInt} {
		_, err := newComparator(staticLedger{}, nil, nil).Compare(context.Background(), days)
		assert.True(t, domain.IsValidation(err), "period_days=%d", days)
	}
}

func TestCompare_LongestPeriodKeepsWindowOrdered(t *testing.T) {
	cmp, err := newComparator(staticLedger{}, nil, nil).Compare(context.Background(), MaxPeriodDays)
	require.NoError(t, err)
	assert.False(t, cmp.Period.Start.After(cmp.Period.End))
	assert.Positive(t, cmp.Period.Days)
}

func TestCDIReturn(t *testing.T) {
	assert.Equal(t, 0.0, CDIReturn(13.25, 0))
	assert.Equal(t, 0.0, CDIReturn(13.25, -3))

	want := (math.Pow(1.1325, 255.0/252) - 1) * 100
	assert.InDelta(t, want, CDIReturn(13.25, 365), 0.01)

	r, err := NewCDI(10).Return(context.Background(), today.AddDays(-10), today)
	require.NoError(t, err)
	assert.Greater(t, *r, 0.0)
	assert.Less(t, *r, 1.0)
}

type fakeHistory struct {
	bars   []domain.PriceBar
	period string
}

func (f *fakeHistory) History(_ context.Context, _ string, period string) ([]domain.PriceBar, error) {
	f.period = period
	return f.bars, nil
}

func bar(d domain.Date, close float64) domain.PriceBar {
	return domain.PriceBar{Date: d.Time, Close: close}
}

func TestIndexReturn(t *testing.T) {
	start, end := today.AddDays(-20), today
	h := &fakeHistory{bars: []domain.PriceBar{
		bar(start.AddDays(-1), 90),
		bar(start, 100),
		bar(start.AddDays(5), 105),
		bar(end, 110),
	}}
	idx := NewIbovespa(h)
	idx.today = func() domain.Date { return today }

	r, err := idx.Return(context.Background(), start, end)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 10.0, *r, 1e-9)
	assert.Equal(t, "1mo", h.period)

	h.bars = h.bars[:2]
	r, err = idx.Return(context.Background(), start, end)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestCached(t *testing.T) {
	db, _ := testingpkg.NewTestDB(t, "cache")
	cache := clientdata.NewRepository(db.Conn())
	ctx := context.Background()
	start, end := today.AddDays(-30), today

	inner := &fixedProvider{key: "ibovespa", value: ptr(3.5)}
	cached := NewCached(inner, cache, zerolog.Nop())
	assert.Equal(t, "ibovespa", cached.Key())

	for i := 0; i < 2; i++ {
		r, err := cached.Return(ctx, start, end)
		require.NoError(t, err)
		assert.Equal(t, 3.5, *r)
	}
	assert.Equal(t, 1, inner.calls)

	missing := &fixedProvider{key: "other"}
	cachedMissing := NewCached(missing, cache, zerolog.Nop())
	for i := 0; i < 2; i++ {
		r, err := cachedMissing.Return(ctx, start, end)
		require.NoError(t, err)
		assert.Nil(t, r)
	}
	assert.Equal(t, 2, missing.calls)
}

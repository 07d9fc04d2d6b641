package fundamentals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Fundamentals(ctx context.Context, ticker string) (*domain.Fundamentals, error) {
	args := m.Called(ctx, ticker)
	f, _ := args.Get(0).(*domain.Fundamentals)
	return f, args.Error(1)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.EventType
}

func (r *recordingEmitter) Emit(t events.EventType, _ string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
}

func newService(t *testing.T, source Source, tickers ...string) *Service {
	db, _ := testingpkg.NewTestDB(t, "ledger")
	log := zerolog.Nop()
	insts := instruments.NewRepository(db.Conn(), log)
	for _, ticker := range tickers {
		require.NoError(t, insts.Create(context.Background(), &domain.Instrument{Ticker: ticker, Name: ticker, IsActive: true}))
	}
	return NewService(NewRepository(db.Conn(), log), insts, source, nil, log)
}

func f64(v float64) *float64 { return &v }

// on pins the service clock to day.
func on(svc *Service, day domain.Date) {
	svc.today = func() domain.Date { return day }
}

func TestCapture_ReplacesSameDaySnapshot(t *testing.T) {
	source := &mockSource{}
	source.On("Fundamentals", mock.Anything, "PETR4").Return(&domain.Fundamentals{PE: f64(4.1), Price: f64(38)}, nil).Once()
	source.On("Fundamentals", mock.Anything, "PETR4").Return(&domain.Fundamentals{PE: f64(4.3), Price: f64(39.5)}, nil).Once()

	svc := newService(t, source, "PETR4")
	on(svc, domain.NewDate(2024, time.March, 4))
	ctx := context.Background()

	first, err := svc.Capture(ctx, "petr4")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", first.Date.String())
	assert.Equal(t, "yahoo", first.Source)

	second, err := svc.Capture(ctx, "PETR4")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := svc.List(ctx, "PETR4", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "PETR4", list[0].Ticker)
	assert.Equal(t, 4.3, *list[0].PE)
	assert.Equal(t, 39.5, *list[0].Price)
	assert.Nil(t, list[0].ROE)
	source.AssertExpectations(t)
}

func TestCapture_ProviderFailureStoresNothing(t *testing.T) {
	source := &mockSource{}
	source.On("Fundamentals", mock.Anything, "VALE3").Return(nil, domain.ErrUnavailable)

	svc := newService(t, source, "VALE3")
	_, err := svc.Capture(context.Background(), "VALE3")
	assert.ErrorIs(t, err, domain.ErrUnavailable)

	_, err = svc.Latest(context.Background(), "VALE3")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	source := &mockSource{}
	source.On("Fundamentals", mock.Anything, "ITUB4").Return(&domain.Fundamentals{PB: f64(1.7)}, nil)

	svc := newService(t, source, "ITUB4")
	ctx := context.Background()
	for _, day := range []int{1, 3, 2} {
		on(svc, domain.NewDate(2024, time.May, day))
		_, err := svc.Capture(ctx, "ITUB4")
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "ITUB4", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2024-05-03", list[0].Date.String())
	assert.Equal(t, "2024-05-02", list[1].Date.String())

	latest, err := svc.Latest(ctx, "itub4")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-03", latest.Date.String())
}

func TestList_Validation(t *testing.T) {
	svc := newService(t, &mockSource{}, "ITUB4")
	ctx := context.Background()

	for _, limit := range []int{-1, MaxLimit + 1} {
		_, err := svc.List(ctx, "ITUB4", limit)
		assert.True(t, domain.IsValidation(err), "limit %d", limit)
	}

	list, err := svc.List(ctx, "ITUB4", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	_, err = svc.List(ctx, "XXXX3", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompare(t *testing.T) {
	source := &mockSource{}
	source.On("Fundamentals", mock.Anything, "WEGE3").Return(&domain.Fundamentals{
		PE: f64(30), PB: f64(0), ROE: f64(25), DividendYield: f64(1.5),
	}, nil).Once()
	source.On("Fundamentals", mock.Anything, "WEGE3").Return(&domain.Fundamentals{
		PE: f64(36), PB: f64(8), DividendYield: f64(1.2),
	}, nil).Once()

	svc := newService(t, source, "WEGE3")
	ctx := context.Background()
	d1, d2 := domain.NewDate(2024, time.January, 10), domain.NewDate(2024, time.June, 10)
	on(svc, d1)
	_, err := svc.Capture(ctx, "WEGE3")
	require.NoError(t, err)
	on(svc, d2)
	_, err = svc.Capture(ctx, "WEGE3")
	require.NoError(t, err)

	c, err := svc.Compare(ctx, "wege3", d1, d2)
	require.NoError(t, err)
	assert.Equal(t, "WEGE3", c.Ticker)
	assert.Equal(t, d1, c.Date1)

	pe := c.Metrics["pl"]
	assert.Equal(t, 30.0, pe.Date1Value)
	assert.Equal(t, 36.0, pe.Date2Value)
	assert.Equal(t, 6.0, pe.Change)
	require.NotNil(t, pe.ChangePercent)
	assert.InDelta(t, 20.0, *pe.ChangePercent, 1e-9)

	dy := c.Metrics["dividend_yield"]
	assert.InDelta(t, -0.3, dy.Change, 1e-9)
	assert.InDelta(t, -20.0, *dy.ChangePercent, 1e-9)

	pb := c.Metrics["pvp"]
	assert.Equal(t, 8.0, pb.Change)
	assert.Nil(t, pb.ChangePercent)

	_, hasROE := c.Metrics["roe"]
	assert.False(t, hasROE)
	_, hasPrice := c.Metrics["price"]
	assert.False(t, hasPrice)

	_, err = svc.Compare(ctx, "WEGE3", d1, domain.NewDate(2024, time.June, 11))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCaptureAll_CollectsFailures(t *testing.T) {
	source := &mockSource{}
	source.On("Fundamentals", mock.Anything, "PETR4").Return(&domain.Fundamentals{PE: f64(4)}, nil)
	source.On("Fundamentals", mock.Anything, "VALE3").Return(nil, domain.ErrUnavailable)

	svc := newService(t, source, "PETR4", "VALE3")
	ctx := context.Background()
	require.NoError(t, svc.instruments.Create(ctx, &domain.Instrument{Ticker: "OIBR3", Name: "Oi", IsActive: false}))

	result, err := svc.CaptureAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Captured)
	assert.Equal(t, []string{"VALE3"}, result.Failed)
	source.AssertNotCalled(t, "Fundamentals", mock.Anything, "OIBR3")

	_, err = svc.Latest(ctx, "PETR4")
	assert.NoError(t, err)
}

func TestCollectorJob_EmitsUpdate(t *testing.T) {
	source := &mockSource{}
	source.On("Fundamentals", mock.Anything, "BBAS3").Return(&domain.Fundamentals{PE: f64(4.5)}, nil)

	svc := newService(t, source, "BBAS3")
	emitter := &recordingEmitter{}
	job := NewCollectorJob(svc, emitter, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, "fundamentals_collector", job.Name())
	assert.Equal(t, []events.EventType{events.FundamentalsUpdated}, emitter.events)

	latest, err := svc.Latest(context.Background(), "BBAS3")
	require.NoError(t, err)
	assert.Equal(t, 4.5, *latest.PE)
}

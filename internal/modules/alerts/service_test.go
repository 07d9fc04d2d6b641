package alerts

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
	"github.com/stretchr/testify/require"
)

type stubQuotes struct {
	mu     sync.Mutex
	quotes map[string]*domain.Quote
	calls  int
}

func (s *stubQuotes) Quote(_ context.Context, ticker string) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if q, ok := s.quotes[ticker]; ok {
		return q, nil
	}
	return nil, domain.ErrUnavailable
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

func newService(t *testing.T, quotes *stubQuotes, tickers ...string) (*Service, *recordingEmitter) {
	db, _ := testingpkg.NewTestDB(t, "ledger")
	log := zerolog.Nop()
	insts := instruments.NewRepository(db.Conn(), log)
	for _, ticker := range tickers {
		require.NoError(t, insts.Create(context.Background(), &domain.Instrument{Ticker: ticker, Name: ticker, IsActive: true}))
	}
	emitter := &recordingEmitter{}
	return NewService(NewRepository(db.Conn(), log), insts, quotes, emitter, log), emitter
}

func intPtr(v int) *int { return &v }

func TestCreateAndUpdate(t *testing.T) {
	svc, _ := newService(t, &stubQuotes{}, "PETR4")
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{
		Ticker:    "petr4",
		Type:      TypePrice,
		Condition: Condition{Operator: OperatorBelow, Value: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alerta price - PETR4", a.Name)
	assert.Equal(t, DefaultCooldownHours, a.CooldownHours)
	assert.True(t, a.IsActive)

	off := false
	updated, err := svc.Update(ctx, a.ID, UpdateRequest{
		IsActive:      &off,
		Condition:     &Condition{Operator: OperatorAbove, Value: 50},
		CooldownHours: intPtr(6),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, Condition{Operator: OperatorAbove, Value: 50}, got.Condition)
	assert.Equal(t, 6, got.CooldownHours)
	assert.Equal(t, "PETR4", got.Ticker)

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t, &stubQuotes{}, "PETR4")
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"unknown type", CreateRequest{Ticker: "PETR4", Type: "volume", Condition: Condition{OperatorAbove, 1}}},
		{"operator for other type", CreateRequest{Ticker: "PETR4", Type: TypePrice, Condition: Condition{OperatorChangeUp, 1}}},
		{"zero price", CreateRequest{Ticker: "PETR4", Type: TypePrice, Condition: Condition{OperatorAbove, 0}}},
		{"negative cooldown", CreateRequest{Ticker: "PETR4", Type: TypePERatio, Condition: Condition{OperatorBelow, 10}, CooldownHours: intPtr(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}

	_, err := svc.Create(ctx, CreateRequest{Ticker: "XPTO3", Type: TypePrice, Condition: Condition{OperatorAbove, 1}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheck_DoesNotRecord(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]*domain.Quote{"PETR4": {Ticker: "PETR4", Price: 28}}}
	svc, emitter := newService(t, quotes, "PETR4", "VALE3")
	ctx := context.Background()

	a, err := svc.Create(ctx, CreateRequest{Ticker: "PETR4", Type: TypePrice, Condition: Condition{OperatorBelow, 30}})
	require.NoError(t, err)

	result, err := svc.Check(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
	require.NotNil(t, result.Message)
	assert.Contains(t, *result.Message, "caiu abaixo de R$ 30.00")

	history, err := svc.History(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, emitter.events)

	b, err := svc.Create(ctx, CreateRequest{Ticker: "VALE3", Type: TypePrice, Condition: Condition{OperatorBelow, 30}})
	require.NoError(t, err)
	_, err = svc.Check(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestCheckActive_RecordsAndRespectsCooldown(t *testing.T) {
	quotes := &stubQuotes{quotes: map[string]*domain.Quote{
		"PETR4": {Ticker: "PETR4", Price: 28, ChangePercent: -6},
	}}
	svc, emitter := newService(t, quotes, "PETR4", "VALE3")
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	price, err := svc.Create(ctx, CreateRequest{Ticker: "PETR4", Type: TypePrice, Condition: Condition{OperatorBelow, 30}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{Ticker: "PETR4", Type: TypeChangePercent, Condition: Condition{OperatorChangeUp, 5}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRequest{Ticker: "VALE3", Type: TypePrice, Condition: Condition{OperatorAbove, 1}})
	require.NoError(t, err)

	summary, err := svc.CheckActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunSummary{Checked: 2, Triggered: 1, Failed: 1}, *summary)
	assert.Equal(t, 2, quotes.calls, "one quote per ticker")
	assert.Equal(t, []events.EventType{events.AlertTriggered}, emitter.events)

	got, err := svc.Get(ctx, price.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TriggerCount)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, now.Equal(*got.LastTriggeredAt))

	history, err := svc.History(ctx, price.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 28.0, history[0].TriggerValue)
	assert.Equal(t, 30.0, history[0].TargetValue)
	assert.Equal(t, "PETR4", history[0].Ticker)

	// Within the cooldown the price alert is skipped.
	now = now.Add(time.Hour)
	summary, err = svc.CheckActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Triggered)

	// After it, it fires again.
	now = now.Add(24 * time.Hour)
	summary, err = svc.CheckActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Triggered)

	got, err = svc.Get(ctx, price.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TriggerCount)
}

func TestCheckerJob(t *testing.T) {
	svc, _ := newService(t, &stubQuotes{})
	job := NewCheckerJob(svc, zerolog.Nop())
	assert.Equal(t, "alert_checker", job.Name())
	assert.NoError(t, job.Run())
}

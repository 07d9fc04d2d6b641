package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.EventType
	data   []interface{}
}

func (r *recordingEmitter) Emit(t events.EventType, _ string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, t)
	r.data = append(r.data, data)
}

func TestCollectorJob(t *testing.T) {
	ledgerDB, _ := testingpkg.NewTestDB(t, "ledger")
	insts := instruments.NewRepository(ledgerDB.Conn(), zerolog.Nop())
	ctx := context.Background()
	for _, ticker := range []string{"PETR4", "VALE3"} {
		require.NoError(t, insts.Create(ctx, &domain.Instrument{Ticker: ticker, Name: ticker, IsActive: true}))
	}
	require.NoError(t, insts.Create(ctx, &domain.Instrument{Ticker: "OIBR3", Name: "Oi", IsActive: false}))

	market := &mockMarket{}
	market.On("Quote", mock.Anything, "PETR4").Return(&domain.Quote{Ticker: "PETR4", Price: 38}, nil)
	market.On("Quote", mock.Anything, "VALE3").Return(nil, errors.New("timeout"))
	svc, _ := newTestService(t, market)

	emitter := &recordingEmitter{}
	job := NewCollectorJob(insts, svc, emitter, zerolog.Nop())
	assert.Equal(t, "price_collector", job.Name())

	result, err := job.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Collected)
	assert.Equal(t, []string{"VALE3"}, result.Failed)
	market.AssertNotCalled(t, "Quote", mock.Anything, "OIBR3")

	require.NoError(t, job.Run())
	require.Len(t, emitter.events, 1)
	assert.Equal(t, events.PricesUpdated, emitter.events[0])
}

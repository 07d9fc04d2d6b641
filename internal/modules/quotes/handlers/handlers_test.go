package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/stockwatch/internal/clientdata"
	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	"github.com/aristath/stockwatch/internal/modules/quotes"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMarket struct {
	quotes map[string]*domain.Quote
	bars   []domain.PriceBar
}

func (s stubMarket) Quote(_ context.Context, ticker string) (*domain.Quote, error) {
	if q, ok := s.quotes[ticker]; ok {
		return q, nil
	}
	return nil, domain.ErrUnavailable
}

func (s stubMarket) History(_ context.Context, _, _ string) ([]domain.PriceBar, error) {
	return s.bars, nil
}

func newRouter(t *testing.T) chi.Router {
	ledgerDB, _ := testingpkg.NewTestDB(t, "ledger")
	cacheDB, _ := testingpkg.NewTestDB(t, "cache")
	log := zerolog.Nop()

	insts := instruments.NewRepository(ledgerDB.Conn(), log)
	banks := "Bancos"
	ctx := context.Background()
	require.NoError(t, insts.Create(ctx, &domain.Instrument{Ticker: "ITUB4", Name: "Itaú", Sector: &banks, IsActive: true}))
	require.NoError(t, insts.Create(ctx, &domain.Instrument{Ticker: "BBDC4", Name: "Bradesco", Sector: &banks, IsActive: true}))
	require.NoError(t, insts.Create(ctx, &domain.Instrument{Ticker: "WEGE3", Name: "WEG", IsActive: true}))

	pe := 7.0
	market := stubMarket{
		quotes: map[string]*domain.Quote{
			"ITUB4": {Ticker: "ITUB4", Price: 33, PERatio: &pe},
			"WEGE3": {Ticker: "WEGE3", Price: 40},
		},
		bars: []domain.PriceBar{
			{Date: domain.NewDate(2024, 3, 1).Time, Close: 10},
			{Date: domain.NewDate(2024, 3, 4).Time, Close: 11},
		},
	}
	svc := quotes.NewService(market, clientdata.NewRepository(cacheDB.Conn()), 0, log)

	router := chi.NewRouter()
	NewHandler(svc, insts, log).RegisterRoutes(router)
	return router
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestQuoteBoard(t *testing.T) {
	router := newRouter(t)

	rec := get(router, "/quotes/")
	require.Equal(t, http.StatusOK, rec.Code)
	var board []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board, 3)
	assert.Equal(t, "BBDC4", board[0]["ticker"])
	assert.Nil(t, board[0]["quote"])
	assert.NotNil(t, board[1]["quote"])

	rec = get(router, "/quotes/?limit=1")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Len(t, board, 1)
}

func TestSector(t *testing.T) {
	router := newRouter(t)

	rec := get(router, "/quotes/sector/bancos")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "ITUB4", rows[0]["ticker"])
	analysis := rows[0]["analysis"].(map[string]interface{})
	assert.Equal(t, float64(25), analysis["score"])

	rec = get(router, "/quotes/sector/Energia")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteHistoryAndAnalysis(t *testing.T) {
	router := newRouter(t)

	rec := get(router, "/quotes/itub4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"price":33`)

	rec = get(router, "/quotes/BBDC4")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(router, "/quotes/WEGE3/history?period=1mo")
	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, float64(2), report["count"])
	assert.Equal(t, "1mo", report["period"])

	rec = get(router, "/quotes/WEGE3/history?period=week")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(router, "/quotes/ITUB4/analysis")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recommendation_type":"neutral"`)
}

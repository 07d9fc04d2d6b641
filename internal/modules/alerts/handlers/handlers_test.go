package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/stockwatch/internal/domain"
	"github.com/aristath/stockwatch/internal/modules/alerts"
	"github.com/aristath/stockwatch/internal/modules/instruments"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes map[string]*domain.Quote

func (s stubQuotes) Quote(_ context.Context, ticker string) (*domain.Quote, error) {
	if q, ok := s[ticker]; ok {
		return q, nil
	}
	return nil, domain.ErrUnavailable
}

func newRouter(t *testing.T) chi.Router {
	db, _ := testingpkg.NewTestDB(t, "ledger")
	log := zerolog.Nop()
	insts := instruments.NewRepository(db.Conn(), log)
	for _, ticker := range []string{"PETR4", "VALE3"} {
		require.NoError(t, insts.Create(context.Background(), &domain.Instrument{Ticker: ticker, Name: ticker, IsActive: true}))
	}
	quotes := stubQuotes{"PETR4": {Ticker: "PETR4", Price: 42}}
	svc := alerts.NewService(alerts.NewRepository(db.Conn(), log), insts, quotes, nil, log)

	router := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAlertLifecycle(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/alerts/", `{"ticker":"PETR4","type":"price","condition":{"operator":"above","value":40}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := int64(created["id"].(float64))
	assert.Equal(t, "PETR4", created["ticker"])

	rec = do(router, http.MethodGet, fmt.Sprintf("/alerts/%d", id), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPost, fmt.Sprintf("/alerts/%d/check", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var check map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.Equal(t, true, check["triggered"])
	assert.Equal(t, float64(42), check["current_value"])

	rec = do(router, http.MethodPatch, fmt.Sprintf("/alerts/%d", id), `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = do(router, http.MethodGet, "/alerts/?active_only=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(router, http.MethodGet, "/alerts/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(router, http.MethodDelete, fmt.Sprintf("/alerts/%d", id), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(router, http.MethodGet, fmt.Sprintf("/alerts/%d", id), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckWithoutQuote(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/alerts/", `{"ticker":"VALE3","type":"pe_ratio","condition":{"operator":"below","value":8}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(router, http.MethodPost, fmt.Sprintf("/alerts/%d/check", int64(created["id"].(float64))), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTypes(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodGet, "/alerts/types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Types []alerts.TypeInfo `json:"types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Types, 4)
	assert.Equal(t, alerts.TypePrice, body.Types[0].Type)
}

func TestAlertErrors(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown ticker", http.MethodPost, "/alerts/", `{"ticker":"XPTO3","type":"price","condition":{"operator":"above","value":1}}`, http.StatusNotFound},
		{"bad operator", http.MethodPost, "/alerts/", `{"ticker":"PETR4","type":"price","condition":{"operator":"change_up","value":1}}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/alerts/abc", "", http.StatusBadRequest},
		{"missing", http.MethodPost, "/alerts/999/check", "", http.StatusNotFound},
		{"bad flag", http.MethodGet, "/alerts/?active_only=sim", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/stockwatch/internal/modules/instruments"
	testingpkg "github.com/aristath/stockwatch/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) chi.Router {
	db, _ := testingpkg.NewTestDB(t, "ledger")
	svc := instruments.NewService(instruments.NewRepository(db.Conn(), zerolog.Nop()), nil, nil, zerolog.Nop())
	router := chi.NewRouter()
	require.NotPanics(t, func() {
		NewHandler(svc, zerolog.Nop()).RegisterRoutes(router)
	})
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

func TestInstrumentLifecycle(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/stocks/", `{"ticker":"wege3","name":"WEG","target_buy_price":30.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "WEGE3", created["ticker"])
	assert.Equal(t, 30.5, created["target_buy_price"])

	rec = do(router, http.MethodPost, "/stocks/", `{"ticker":"WEGE3","name":"WEG"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(router, http.MethodGet, "/stocks/WEGE3", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPatch, "/stocks/WEGE3", `{"notes":"core holding"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "core holding")

	rec = do(router, http.MethodGet, "/stocks/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = do(router, http.MethodDelete, "/stocks/WEGE3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(router, http.MethodGet, "/stocks/WEGE3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreate_BadRequest(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/stocks/", `{"ticker":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/stocks/", `{"ticker":"NOT A TICKER"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestList_EmptyIsArray(t *testing.T) {
	router := newRouter(t)
	rec := do(router, http.MethodGet, "/stocks/?active_only=false", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

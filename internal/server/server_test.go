package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/stockwatch/internal/config"
	"github.com/aristath/stockwatch/internal/di"
	"github.com/aristath/stockwatch/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir:                t.TempDir(),
		Port:                   8000,
		QuoteCacheTTL:          5 * time.Minute,
		PriceCollectorInterval: 15 * time.Minute,
		AlertCheckSchedule:     "0 */5 10-18 * * 1-5",
		CDIAnnualRate:          13.25,
		Backup:                 &config.BackupConfig{},
	}
	container, _, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	srv := New(Config{
		Log:       zerolog.Nop(),
		Port:      cfg.Port,
		DevMode:   true,
		DataDir:   cfg.DataDir,
		Container: container,
	})
	return srv, container
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	srv, container := newTestServer(t)
	require.NoError(t, container.CacheDB.Close())

	rec := serve(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"cache"`)
}

func TestSystemStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	require.Len(t, body.Databases, 2)
	assert.Equal(t, "ledger", body.Databases[0].Name)
	assert.Equal(t, "cache", body.Databases[1].Name)
	assert.Len(t, body.Jobs, 6)

	rec = serve(srv, http.MethodGet, "/api/system/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/system/database/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestModuleRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodPost, "/api/stocks", `{"ticker":"petr4","name":"Petrobras"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		path string
		want int
	}{
		{"/api/stocks", http.StatusOK},
		{"/api/stocks/PETR4", http.StatusOK},
		{"/api/portfolio/holdings", http.StatusOK},
		{"/api/portfolio/transactions", http.StatusOK},
		{"/api/dividends", http.StatusOK},
		{"/api/alerts", http.StatusOK},
		{"/api/alerts/types", http.StatusOK},
		{"/api/fundamentals/PETR4", http.StatusOK},
		{"/api/fundamentals/PETR4/latest", http.StatusNotFound},
		{"/api/fundamentals/XXXX3", http.StatusNotFound},
		{"/api/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(srv, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/stocks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventStream_SSE(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events/stream?types=instrument_changed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var v map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &v))
				return v
			}
		}
	}

	assert.Equal(t, "connected", readEvent()["type"])

	rec := serve(srv, http.MethodPost, "/api/stocks", `{"ticker":"VALE3","name":"Vale"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	e := readEvent()
	assert.Equal(t, "instrument_changed", e["type"])
	assert.Equal(t, "instruments", e["module"])
	data, ok := e["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "VALE3", data["ticker"])
}

func TestEventStream_RejectsUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := serve(srv, http.MethodGet, "/api/events/stream?types=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(srv, http.MethodGet, "/api/events/ws?types=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventStream_WebSocket(t *testing.T) {
	srv, container := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws?types=prices_updated"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var hello map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, "connected", hello["type"])

	// filtered out
	container.EventManager.Emit(events.AlertTriggered, "alerts", nil)
	container.EventManager.Emit(events.PricesUpdated, "quotes", map[string]interface{}{"collected": 3})

	var e events.Event
	require.NoError(t, wsjson.Read(ctx, conn, &e))
	assert.Equal(t, events.PricesUpdated, e.Type)
	assert.Equal(t, "quotes", e.Module)
	assert.NotEmpty(t, e.ID)
}

func TestParseTypes(t *testing.T) {
	all, err := parseTypes("")
	require.NoError(t, err)
	assert.Equal(t, events.AllTypes, all)

	some, err := parseTypes(" prices_updated , alert_triggered,")
	require.NoError(t, err)
	assert.Equal(t, []events.EventType{events.PricesUpdated, events.AlertTriggered}, some)

	_, err = parseTypes("prices_updated,nope")
	assert.Error(t, err)
}

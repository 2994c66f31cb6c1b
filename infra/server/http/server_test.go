package httpsrv

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/pricing-sync-service/config"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
	httphandler "github.com/webitel/pricing-sync-service/internal/handler/http"
	"github.com/webitel/pricing-sync-service/internal/handler/ws"
	"github.com/webitel/pricing-sync-service/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type nopExporter struct{}

func (nopExporter) Export(model.OutboundEventer) bool { return true }

func newHandler(t *testing.T) http.Handler {
	t.Helper()

	cfg := &config.Config{Hub: config.HubConfig{
		SendBuffer:    8,
		WriteTimeout:  time.Second,
		PingInterval:  time.Hour,
		PongTimeout:   time.Minute,
		SnapshotCache: 2,
	}}
	clock := clockwork.NewRealClock()
	initial, err := model.NewSnapshot(model.NewDefaultState(1000))
	require.NoError(t, err)
	hub := registry.NewHub(initial, registry.WithClock(clock))
	t.Cleanup(hub.Shutdown)

	reg := metrics.NewRegistry()
	svc, err := service.NewRelayService(cfg, hub, nopExporter{}, metrics.NewRelayMetrics(reg), discard)
	require.NoError(t, err)

	return NewRouter(ws.NewWSHandler(cfg, discard, svc, clock), httphandler.NewOpsHandler(svc, discard), reg, discard)
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_BannerForPlainRequests(t *testing.T) {
	h := newHandler(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/ws"},
		{http.MethodGet, "/anything/else"},
		{http.MethodPost, "/healthz"},
	} {
		rec := get(t, h, tc.method, tc.path)
		assert.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.Equal(t, "Beer Stock WebSocket Server", rec.Body.String(), tc.path)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	h := newHandler(t)

	rec := get(t, h, http.MethodGet, "/healthz")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, h, http.MethodGet, "/state")
	assert.JSONEq(t, `{"beers":[],"lastUpdate":1000}`, rec.Body.String())

	rec = get(t, h, http.MethodGet, "/stats")
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 0, stats["connections"])
	assert.EqualValues(t, 0, stats["stateRevision"])

	rec = get(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pricing_sync_relay_active_connections")
}

func TestRouter_UpgradesOnAnyPath(t *testing.T) {
	srv := httptest.NewServer(newHandler(t))
	t.Cleanup(srv.Close)

	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	for _, path := range []string{"/", "/ws", "/room/1"} {
		conn, _, err := websocket.DefaultDialer.Dial(base+path, nil)
		require.NoError(t, err, path)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var env model.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		assert.Equal(t, "initialState", env.Type)
		conn.Close()
	}
}

func TestServer_StartFailsWhenPortBusy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	s := NewServer(ln.Addr().String(), http.NotFoundHandler(), discard)
	require.Error(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_StartAndStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", newHandler(t), discard)
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, httphandler.Banner, string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

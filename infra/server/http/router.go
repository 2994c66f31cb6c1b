package httpsrv

import (
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	httphandler "github.com/webitel/pricing-sync-service/internal/handler/http"
	"github.com/webitel/pricing-sync-service/internal/handler/ws"
)

// NewRouter mounts the relay and the operational endpoints on one mux.
// Any websocket handshake is upgraded regardless of path; any other request
// that matches no route gets the plaintext banner.
func NewRouter(wsh *ws.WSHandler, ops *httphandler.OpsHandler, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	relayOrBanner := func(w http.ResponseWriter, r *http.Request) {
		if ws.IsUpgrade(r) {
			wsh.ServeHTTP(w, r)
			return
		}
		ops.Banner(w, r)
	}

	r := chi.NewRouter()
	r.Use(accessLog(logger))

	r.HandleFunc("/", relayOrBanner)
	r.HandleFunc("/ws", relayOrBanner)
	r.Get("/healthz", ops.Healthz)
	r.Get("/state", ops.State)
	r.Get("/stats", ops.Stats)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))

	r.NotFound(relayOrBanner)
	r.MethodNotAllowed(relayOrBanner)

	return r
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Debug("handled",
				"method", r.Method,
				"url", r.URL.String(),
				"status", m.Code,
				"duration", m.Duration,
				"bytes", m.Written,
			)
		})
	}
}

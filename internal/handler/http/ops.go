package httphandler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/webitel/pricing-sync-service/internal/service"
)

// Banner is the plaintext reply for any non-upgrade request to the relay.
const Banner = "Beer Stock WebSocket Server"

// OpsHandler serves read-only operational endpoints next to the relay.
type OpsHandler struct {
	relayer service.Relayer
	logger  *slog.Logger
}

func NewOpsHandler(relayer service.Relayer, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{relayer: relayer, logger: logger}
}

func (h *OpsHandler) Banner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(Banner))
}

func (h *OpsHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"})
}

// State returns the current shared state exactly as it is seeded to clients.
func (h *OpsHandler) State(w http.ResponseWriter, _ *http.Request) {
	snap, _ := h.relayer.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(snap.Raw)
}

type statsResponse struct {
	Connections   int     `json:"connections"`
	StateRevision uint64  `json:"stateRevision"`
	LastUpdate    int64   `json:"lastUpdate"`
	Items         int     `json:"items"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

func (h *OpsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	st := h.relayer.Stats()
	h.writeJSON(w, statsResponse{
		Connections:   st.TotalConnections,
		StateRevision: st.StateRevision,
		LastUpdate:    st.LastUpdate,
		Items:         st.Items,
		UptimeSeconds: st.Uptime.Seconds(),
	})
}

func (h *OpsHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("HTTP_ENCODE_FAILED", "err", err)
	}
}

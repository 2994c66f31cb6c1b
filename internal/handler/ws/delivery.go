package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/webitel/pricing-sync-service/config"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/pricing-sync-service/internal/handler/marshaller/ws"
	"github.com/webitel/pricing-sync-service/internal/service"
)

const defaultPingInterval = 30 * time.Second

type WSHandler struct {
	logger   *slog.Logger
	relayer  service.Relayer
	clock    clockwork.Clock
	cfg      config.HubConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(cfg *config.Config, logger *slog.Logger, relayer service.Relayer, clock clockwork.Clock) *WSHandler {
	return &WSHandler{
		logger:  logger,
		relayer: relayer,
		clock:   clock,
		cfg:     cfg.Hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     NewCheckOrigin(cfg.Hub.AllowedOrigins, logger),
		},
	}
}

// IsUpgrade reports whether r asks for a websocket handshake.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied with an HTTP error.
		h.logger.Warn("WS_UPGRADE_FAILED", "remote_addr", r.RemoteAddr, "err", err)
		return
	}
	defer ws.Close()

	// 2. REGISTER AND SEED
	conn, err := h.relayer.Join(r.Context(), registry.ConnectMetadata{
		RemoteIP:  remoteIP(r),
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
	})
	if err != nil {
		h.closeWith(ws, websocket.CloseTryAgainLater, "relay unavailable")
		return
	}

	// 3. WRITER PUMP
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(ws, conn)
	}()

	// 4. READER PUMP (blocks until the socket fails or is closed by the writer)
	h.readPump(r.Context(), ws, conn)

	// 5. CLEANUP: unregister before closing so no broadcast sees a dead mailbox.
	_ = h.relayer.Leave(conn.GetID())
	conn.Close()
	wg.Wait()
}

// readPump handles frames of one connection sequentially, which keeps
// per-sender ordering intact.
func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, conn registry.Connector) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("PANIC_RECOVERED",
				"conn_id", conn.GetID(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if h.cfg.MaxMessageBytes > 0 {
		ws.SetReadLimit(h.cfg.MaxMessageBytes)
	}
	h.extendReadDeadline(ws)
	ws.SetPongHandler(func(string) error {
		h.extendReadDeadline(ws)
		return nil
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, net.ErrClosed) {
				h.logger.Debug("WS_READ_FAILED", "conn_id", conn.GetID(), "err", err)
			}
			return
		}
		h.extendReadDeadline(ws)

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		// [ISOLATION] A bad frame is dropped; the sender keeps its connection.
		_ = h.relayer.Dispatch(ctx, conn.GetID(), data)
	}
}

// writePump is the only goroutine that writes to ws.
func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector) {
	interval := h.cfg.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ticker := h.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-conn.Recv():
			frame, err := wsmarshaller.MarshallDeliveryEvent(ev)
			if err != nil {
				h.logger.Error("WS_MARSHAL_FAILED", "conn_id", conn.GetID(), "kind", ev.GetKind().String(), "err", err)
				continue
			}

			h.extendWriteDeadline(ws)
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("WS_WRITE_FAILED", "conn_id", conn.GetID(), "err", err)
				_ = ws.Close()
				return
			}

		case <-ticker.Chan():
			h.extendWriteDeadline(ws)
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = ws.Close()
				return
			}

		case <-conn.Done():
			// Evicted, detached or shut down: say goodbye and unblock the reader.
			h.closeWith(ws, websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (h *WSHandler) closeWith(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(h.cfg.WriteTimeout)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}

func (h *WSHandler) extendReadDeadline(ws *websocket.Conn) {
	if h.cfg.PongTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	}
}

func (h *WSHandler) extendWriteDeadline(ws *websocket.Conn) {
	if h.cfg.WriteTimeout > 0 {
		_ = ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
)

// LoggingMiddleware decorates a Relayer with connection lifecycle and
// rejection logging, keeping the relay itself free of transport chatter.
type LoggingMiddleware struct {
	next   Relayer
	logger *slog.Logger
}

func NewLoggingMiddleware(next Relayer, logger *slog.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{next: next, logger: logger}
}

func (m *LoggingMiddleware) Join(ctx context.Context, meta registry.ConnectMetadata) (registry.Connector, error) {
	conn, err := m.next.Join(ctx, meta)
	if err != nil {
		m.logger.Error("JOIN_FAILED", "remote_ip", meta.RemoteIP, "err", err)
		return nil, err
	}

	m.logger.Info("client connected",
		slog.String("conn_id", conn.GetID().String()),
		slog.String("remote_ip", meta.RemoteIP),
		slog.String("user_agent", meta.UserAgent),
	)
	return conn, nil
}

func (m *LoggingMiddleware) Leave(connID uuid.UUID) bool {
	if !m.next.Leave(connID) {
		// Already evicted; the eviction was logged by the relay.
		return false
	}
	m.logger.Info("client disconnected", slog.String("conn_id", connID.String()))
	return true
}

func (m *LoggingMiddleware) Dispatch(ctx context.Context, connID uuid.UUID, raw []byte) error {
	err := m.next.Dispatch(ctx, connID, raw)
	if err != nil {
		// Rejected frames are dropped; the sender stays connected.
		m.logger.Warn("MESSAGE_DISCARDED",
			slog.String("conn_id", connID.String()),
			slog.Int("size", len(raw)),
			slog.Any("err", err),
		)
	}
	return err
}

func (m *LoggingMiddleware) Snapshot() (model.Snapshot, uint64) { return m.next.Snapshot() }
func (m *LoggingMiddleware) Stats() model.HubStats              { return m.next.Stats() }

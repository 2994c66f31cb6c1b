package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/webitel/pricing-sync-service/config"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"github.com/webitel/pricing-sync-service/internal/adapter/pubsub"
	"github.com/webitel/pricing-sync-service/internal/domain/event"
	"github.com/webitel/pricing-sync-service/internal/domain/model"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/pricing-sync-service/internal/handler/marshaller/ws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/webitel/pricing-sync-service/internal/service"

var ErrNotRegistered = errors.New("connection is not registered")

// [RELAY_SERVICE] PRIMARY INTERFACE FOR TRANSPORT HANDLERS
type Relayer interface {
	// Join registers a new connection and queues its initialState frame.
	Join(ctx context.Context, meta registry.ConnectMetadata) (registry.Connector, error)
	// Leave removes the connection; no frame is sent to it afterwards.
	// It reports false when the connection was already gone (evicted or left).
	Leave(connID uuid.UUID) bool
	// Dispatch routes one inbound frame from connID. Errors are per-message
	// and never require closing the sender.
	Dispatch(ctx context.Context, connID uuid.UUID, raw []byte) error
	Snapshot() (model.Snapshot, uint64)
	Stats() model.HubStats
}

type RelayService struct {
	hub      registry.Hubber
	exporter pubsub.Exporter
	metrics  *metrics.RelayMetrics
	logger   *slog.Logger
	tracer   trace.Tracer

	sendBuffer int
	// seeds caches the encoded initialState frame per state revision so a
	// burst of reconnects does not re-encode the same snapshot.
	seeds *lru.Cache[uint64, []byte]
}

// Option configures optional RelayService collaborators.
type Option func(*RelayService)

// WithTracerProvider sets the provider dispatch spans are recorded on.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *RelayService) {
		s.tracer = tp.Tracer(tracerName)
	}
}

func NewRelayService(
	cfg *config.Config,
	hub registry.Hubber,
	exporter pubsub.Exporter,
	m *metrics.RelayMetrics,
	logger *slog.Logger,
	opts ...Option,
) (*RelayService, error) {
	seeds, err := lru.New[uint64, []byte](cfg.Hub.SnapshotCache)
	if err != nil {
		return nil, fmt.Errorf("seed cache: %w", err)
	}

	s := &RelayService{
		hub:        hub,
		exporter:   exporter,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		sendBuffer: cfg.Hub.SendBuffer,
		seeds:      seeds,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// [JOIN] HANDLES CONNECTION LIFECYCLE INITIATION
func (s *RelayService) Join(ctx context.Context, meta registry.ConnectMetadata) (registry.Connector, error) {
	conn := registry.NewConnector(ctx, meta, s.sendBuffer)

	if err := s.hub.Attach(conn, s.seed); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join: %w", err)
	}

	s.metrics.ActiveConnections.Inc()
	s.metrics.FramesDelivered.WithLabelValues(event.InitialState.String()).Inc()
	return conn, nil
}

// seed runs under the hub lock with the state current at registration.
func (s *RelayService) seed(snap model.Snapshot, revision uint64) (event.Eventer, error) {
	ev := event.NewInitialStateEvent(snap.Raw)

	if frame, ok := s.seeds.Get(revision); ok {
		ev.SetCached(frame)
		return ev, nil
	}

	frame, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		return nil, err
	}
	s.seeds.Add(revision, frame)
	return ev, nil
}

// [LEAVE] TRIGGERS CLEANUP
func (s *RelayService) Leave(connID uuid.UUID) bool {
	if !s.hub.Detach(connID) {
		return false
	}
	s.metrics.ActiveConnections.Dec()
	return true
}

func (s *RelayService) Snapshot() (model.Snapshot, uint64) {
	return s.hub.Snapshot()
}

func (s *RelayService) Stats() model.HubStats {
	return s.hub.Stats()
}

// afterFanout books metrics and logs evicted recipients.
func (s *RelayService) afterFanout(kind event.EventKind, out registry.Fanout) {
	s.metrics.FramesDelivered.WithLabelValues(kind.String()).Add(float64(out.Delivered))

	for _, conn := range out.Evicted {
		s.metrics.RecipientsEvicted.Inc()
		s.metrics.ActiveConnections.Dec()
		s.logger.Warn("[RELAY] slow recipient evicted",
			slog.String("conn_id", conn.GetID().String()),
			slog.String("remote_ip", conn.GetMetadata().RemoteIP),
			slog.Uint64("dropped", conn.Dropped()),
		)
	}
}

package service

import (
	"log/slog"

	"github.com/webitel/pricing-sync-service/config"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"github.com/webitel/pricing-sync-service/internal/adapter/pubsub"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
	"go.opentelemetry.io/otel/trace"

	"go.uber.org/fx"
)

var Module = fx.Module("service",
	fx.Provide(
		func(
			cfg *config.Config,
			hub registry.Hubber,
			exporter pubsub.Exporter,
			m *metrics.RelayMetrics,
			logger *slog.Logger,
			tp trace.TracerProvider,
		) (*RelayService, error) {
			return NewRelayService(cfg, hub, exporter, m, logger, WithTracerProvider(tp))
		},
		func(s *RelayService, logger *slog.Logger) Relayer {
			return NewLoggingMiddleware(s, logger)
		},
	),
)

package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/pricing-sync-service/config"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("export",
	fx.Provide(
		NewWatermillLogger,
		NewPublisher,
		NewEventDispatcher,
		func(d EventDispatcher, logger *slog.Logger, m *metrics.RelayMetrics, cfg *config.Config) *AsyncExporter {
			return NewAsyncExporter(d, logger, m, cfg.Export.Buffer)
		},
		func(e *AsyncExporter) Exporter { return e },
	),
	fx.Invoke(func(lc fx.Lifecycle, e *AsyncExporter, pub message.Publisher) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				e.Stop()
				return pub.Close()
			},
		})
	}),
)

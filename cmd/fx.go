package cmd

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/webitel/pricing-sync-service/config"
	grpcsrv "github.com/webitel/pricing-sync-service/infra/server/grpc"
	httpsrv "github.com/webitel/pricing-sync-service/infra/server/http"
	"github.com/webitel/pricing-sync-service/internal/adapter/metrics"
	"github.com/webitel/pricing-sync-service/internal/adapter/pubsub"
	"github.com/webitel/pricing-sync-service/internal/domain/registry"
	httphandler "github.com/webitel/pricing-sync-service/internal/handler/http"
	"github.com/webitel/pricing-sync-service/internal/handler/ws"
	"github.com/webitel/pricing-sync-service/internal/service"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			ProvideLogger,
			ProvideTracing,
			ProvideTracerProvider,
			func() clockwork.Clock { return clockwork.NewRealClock() },
		),
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: l.With("component", "fx")}
		}),
		metrics.Module,
		registry.Module,
		pubsub.Module,
		service.Module,
		ws.Module,
		httphandler.Module,
		httpsrv.Module,
		grpcsrv.Module,
	)
}

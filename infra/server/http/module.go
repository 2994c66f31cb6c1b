package httpsrv

import (
	"log/slog"
	"net/http"

	"github.com/webitel/pricing-sync-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(
		NewRouter,
		func(cfg *config.Config, h http.Handler, logger *slog.Logger) *Server {
			return NewServer(cfg.Server.Addr(), h, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)

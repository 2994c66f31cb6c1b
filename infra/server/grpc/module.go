package grpcsrv

import (
	"log/slog"

	"github.com/webitel/pricing-sync-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("grpc-server",
	fx.Provide(func(cfg *config.Config, logger *slog.Logger) *Server {
		return NewServer(cfg.GRPC.Address, logger.With("component", "grpc"))
	}),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)

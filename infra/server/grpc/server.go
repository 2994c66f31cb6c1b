package grpcsrv

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/webitel/pricing-sync-service/infra/server/grpc/interceptors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayServiceName is the health service name reported next to the overall status.
const RelayServiceName = "pricing_sync.Relay"

// Server exposes the standard gRPC health protocol for orchestrators.
// It is disabled when no address is configured.
type Server struct {
	addr     string
	logger   *slog.Logger
	grpc     *grpc.Server
	health   *health.Server
	listener net.Listener
	done     chan struct{}
}

func NewServer(addr string, logger *slog.Logger) *Server {
	opts := append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}, interceptors.ServerOptions(logger)...)

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		addr:   addr,
		logger: logger,
		grpc:   srv,
		health: hs,
		done:   make(chan struct{}),
	}
}

func (s *Server) Enabled() bool { return s.addr != "" }

func (s *Server) Start(_ context.Context) error {
	if !s.Enabled() {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	s.listener = ln

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(RelayServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		defer close(s.done)
		if err := s.grpc.Serve(ln); err != nil {
			s.logger.Error("GRPC_SERVE_FAILED", "err", err)
		}
	}()

	s.logger.Info("grpc health server listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address; valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	// Watchers see NOT_SERVING before the transport goes away.
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpc.Stop()
	}
	<-s.done
	return nil
}

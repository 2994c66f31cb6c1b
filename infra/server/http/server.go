package httpsrv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server owns the relay listener.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	listener   net.Listener
	done       chan struct{}
}

func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start binds the port synchronously and serves in the background, so a
// bind failure surfaces as a start error.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		defer close(s.done)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP_SERVE_FAILED", "err", err)
		}
	}()

	s.logger.Info("relay server listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address; valid after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	<-s.done
	return err
}

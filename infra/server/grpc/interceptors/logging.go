package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SlogLogger adapts slog to the go-grpc-middleware logging contract.
func SlogLogger(l *slog.Logger) logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		l.Log(ctx, slog.Level(lvl), msg, fields...)
	})
}

// RecoveryHandler turns a handler panic into codes.Internal and logs the stack.
func RecoveryHandler(l *slog.Logger) recovery.RecoveryHandlerFuncContext {
	return func(ctx context.Context, p any) error {
		l.ErrorContext(ctx, "PANIC_RECOVERED", "panic", p, "stack", string(debug.Stack()))
		return status.Errorf(codes.Internal, "internal error")
	}
}

// ServerOptions chains recovery (outermost) and call logging for unary and stream RPCs.
func ServerOptions(l *slog.Logger) []grpc.ServerOption {
	recoveryOpt := recovery.WithRecoveryHandlerContext(RecoveryHandler(l))
	logOpts := []logging.Option{
		logging.WithLogOnEvents(logging.FinishCall),
	}

	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoveryOpt),
			logging.UnaryServerInterceptor(SlogLogger(l), logOpts...),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoveryOpt),
			logging.StreamServerInterceptor(SlogLogger(l), logOpts...),
		),
	}
}

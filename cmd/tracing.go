package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/webitel/pricing-sync-service/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

// ProvideTracing installs the global tracer provider and exports sampled
// spans through the configured exporter.
func ProvideTracing(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	tp, err := newTracerProvider(context.Background(), cfg.Tracing, os.Stdout)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled",
			"exporter", cfg.Tracing.Exporter,
			"endpoint", cfg.Tracing.Endpoint,
			"sample_ratio", cfg.Tracing.SampleRatio,
		)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Shutdown flushes the batcher.
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("TRACER_SHUTDOWN_FAILED", "err", err)
			}
			return nil
		},
	})
	return tp, nil
}

func newTracerProvider(ctx context.Context, cfg config.TracingConfig, stdout io.Writer) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
			attribute.String("service.namespace", ServiceNamespace),
			attribute.String("service.version", version),
		)),
	}

	if !cfg.Enabled {
		opts = append(opts, sdktrace.WithSampler(sdktrace.NeverSample()))
		return sdktrace.NewTracerProvider(opts...), nil
	}

	opts = append(opts, sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))))

	exp, err := newSpanExporter(ctx, cfg, stdout)
	if err != nil {
		return nil, err
	}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// newSpanExporter returns nil for exporter "none".
func newSpanExporter(ctx context.Context, cfg config.TracingConfig, stdout io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", config.TraceExporterNone:
		return nil, nil
	case config.TraceExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return nil, fmt.Errorf("stdout trace exporter: %w", err)
		}
		return exp, nil
	case config.TraceExporterOTLP:
		// The gRPC connection is established lazily on first export.
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("otlp trace exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

// ProvideTracerProvider exposes the sdk provider through the API interface.
func ProvideTracerProvider(tp *sdktrace.TracerProvider) trace.TracerProvider {
	return tp
}

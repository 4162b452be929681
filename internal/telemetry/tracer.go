// Package telemetry sets up tracing and publishes the named pipeline events.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracerName is the instrumentation scope used by the moderation pipeline.
const TracerName = "github.com/tjfontaine/polyglot-moderation-gateway"

// TracerConfig controls tracer setup.
type TracerConfig struct {
	Enabled     bool
	ServiceName string
	// Writer receives exported spans. Defaults to stderr.
	Writer io.Writer
}

// InitTracer initializes OpenTelemetry tracing. When tracing is disabled the
// global no-op provider is left in place and the returned shutdown does
// nothing.
func InitTracer(cfg TracerConfig, logger *slog.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		logger.Info("OpenTelemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", cfg.ServiceName))

	return tp.Shutdown, nil
}

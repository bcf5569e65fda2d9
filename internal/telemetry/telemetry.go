package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "screenshot-batch"

// Tracer is used for the batch, worker and capture spans.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

type Shutdown func(ctx context.Context) error

// SetupTracing installs an OTLP trace exporter when OTEL_EXPORTER_OTLP_ENDPOINT
// is set and a pyroscope profiler when PYROSCOPE_ENDPOINT is set. Without
// either the global no-op providers stay in place.
func SetupTracing(ctx context.Context) (Shutdown, error) {
	var shutdowns []Shutdown

	if endpoint := os.Getenv("PYROSCOPE_ENDPOINT"); endpoint != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: ServiceName,
			ServerAddress:   endpoint,
			UploadRate:      60 * time.Second,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
				pyroscope.ProfileGoroutines,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create profiler: %w", err)
		}
		shutdowns = append(shutdowns, func(context.Context) error {
			return profiler.Stop()
		})
	}

	if _, ok := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		otel.SetTextMapPropagator(propagation.TraceContext{})

		r, err := sdkresource.Merge(
			sdkresource.Default(),
			sdkresource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(ServiceName)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
		traceExporter, err := otlptracegrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceProvider := sdktrace.NewTracerProvider(
			sdktrace.WithResource(r),
			sdktrace.WithBatcher(traceExporter),
		)
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(traceProvider))
		shutdowns = append(shutdowns, traceProvider.Shutdown)
	}

	return func(ctx context.Context) error {
		for i := len(shutdowns) - 1; i >= 0; i-- {
			if err := shutdowns[i](ctx); err != nil {
				return fmt.Errorf("failed to shutdown telemetry: %w", err)
			}
		}
		return nil
	}, nil
}

// NewPrometheusMeter returns a meter whose instruments are exported through
// the default prometheus registry.
func NewPrometheusMeter() (metric.Meter, error) {
	exporter, err := otelprometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)).Meter(ServiceName), nil
}

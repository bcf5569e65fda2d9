package myhttp

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-logr/logr"
	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Router is a ServeMux whose instrumented routes are traced, profiled, timed
// and protected against panics.
type Router struct {
	*http.ServeMux
	log                              logr.Logger
	httpRequestsDurationMicroSeconds metric.Int64Histogram
}

func NewRouter(log logr.Logger, meter metric.Meter) (*Router, error) {
	histogram, err := meter.Int64Histogram("http_requests_duration_micro_seconds",
		metric.WithUnit("us"))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	return &Router{
		ServeMux:                         http.NewServeMux(),
		log:                              log,
		httpRequestsDurationMicroSeconds: histogram,
	}, nil
}

func (m *Router) HandleWithMiddleware(pattern string, handler http.Handler) {
	m.ServeMux.Handle(pattern, m.middleware(pattern, handler))
}

func (m *Router) HandleFuncWithMiddleware(pattern string, handler http.HandlerFunc) {
	m.ServeMux.Handle(pattern, m.middleware(pattern, handler))
}

func (m *Router) middleware(pattern string, next http.Handler) http.Handler {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		log := m.log.WithValues(
			"traceid", span.SpanContext().TraceID().String(),
			"spanid", span.SpanContext().SpanID().String(),
		)

		defer func() {
			if err := recover(); err != nil {
				log.Error(fmt.Errorf("%v", err), "handler panicked", "stack", string(debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()

		pyroscope.TagWrapper(r.Context(), pyroscope.Labels("handler", pattern), func(ctx context.Context) {
			now := time.Now()
			next.ServeHTTP(w, r.WithContext(logr.NewContext(ctx, log)))
			m.httpRequestsDurationMicroSeconds.Record(ctx, time.Since(now).Microseconds(), metric.WithAttributes(
				attribute.Key("method").String(r.Method),
				attribute.Key("handler").String(pattern),
			))
		})
	})

	return otelhttp.NewHandler(handler, pattern, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return fmt.Sprintf("%s %s", r.Method, operation)
	}))
}

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments records batch outcomes. A nil *Instruments records nothing.
type Instruments struct {
	captures        metric.Int64Counter
	captureDuration metric.Int64Histogram
	sessions        metric.Int64Counter
}

func NewInstruments(meter metric.Meter) (*Instruments, error) {
	captures, err := meter.Int64Counter("screenshot_captures_total",
		metric.WithDescription("Capture steps by outcome."))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	// NOTE: Gauge(UpDownCounter), Summary or Untyped does not support exemplars
	captureDuration, err := meter.Int64Histogram("screenshot_capture_duration_ms",
		metric.WithDescription("Time from navigation to image write."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	sessions, err := meter.Int64Counter("screenshot_sessions_total",
		metric.WithDescription("Worker sessions by result."))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Instruments{
		captures:        captures,
		captureDuration: captureDuration,
		sessions:        sessions,
	}, nil
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.Key("outcome").String("success")
	}
	return attribute.Key("outcome").String("failure")
}

func (i *Instruments) RecordCapture(ctx context.Context, ok bool, elapsed time.Duration) {
	if i == nil {
		return
	}
	i.captures.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
	if ok {
		i.captureDuration.Record(ctx, elapsed.Milliseconds())
	}
}

// RecordSession counts a finished worker; ok is false when the worker hit a fatal error.
func (i *Instruments) RecordSession(ctx context.Context, ok bool) {
	if i == nil {
		return
	}
	i.sessions.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

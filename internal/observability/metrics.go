// Package observability provides solve metrics with a Prometheus exporter.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const attrState = "state"

// Metrics holds the solve lifecycle metrics:
// - Latency: how long solve invocations take end to end
// - Traffic: solve throughput
// - Errors: solves ending in the errored state
// - Saturation: solves currently in flight
type Metrics struct {
	meter metric.Meter

	SolveDuration metric.Float64Histogram
	SolvesTotal   metric.Int64Counter
	SolveErrors   metric.Int64Counter
	SolvesActive  metric.Int64UpDownCounter
}

// NewMetrics creates and registers all metrics with a Prometheus
// exporter. The returned handler serves the scrape endpoint; mounting it
// is left to the embedding process.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("optimizer")
	m := &Metrics{meter: meter}

	m.SolveDuration, err = meter.Float64Histogram(
		"solve_duration_seconds",
		metric.WithDescription("Solve invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SolvesTotal, err = meter.Int64Counter(
		"solves_total",
		metric.WithDescription("Total solve invocations by terminal state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SolveErrors, err = meter.Int64Counter(
		"solve_errors_total",
		metric.WithDescription("Solve invocations ending in the errored state"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SolvesActive, err = meter.Int64UpDownCounter(
		"solves_active",
		metric.WithDescription("Solve invocations currently in flight"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordSolveStarted records a solve entering flight.
func (m *Metrics) RecordSolveStarted(ctx context.Context) {
	m.SolvesActive.Add(ctx, 1)
}

// RecordSolveCompleted records a solve reaching a terminal state.
func (m *Metrics) RecordSolveCompleted(ctx context.Context, state string, durationSeconds float64) {
	attrs := metric.WithAttributes(attribute.String(attrState, state))
	m.SolvesActive.Add(ctx, -1)
	m.SolvesTotal.Add(ctx, 1, attrs)
	m.SolveDuration.Record(ctx, durationSeconds, attrs)
	if state == "errored" {
		m.SolveErrors.Add(ctx, 1)
	}
}

package relay

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the counters C6 exposes at /metrics: request volume,
// per-provider failures, and retry attempts, per spec.md §4.6's relay
// responsibilities. Built on OpenTelemetry's Prometheus exporter, adopted
// from the rest of the example pack's metrics stack since the teacher repo
// carries no metrics of its own.
//
// NewMetrics registers its reader against the default Prometheus registerer,
// so cmd/transcribe-agent can serve /metrics with a plain promhttp.Handler()
// without this package needing to depend on net/http.
type Metrics struct {
	requests        metric.Int64Counter
	providerFailure metric.Int64Counter
	retries         metric.Int64Counter
}

// NewMetrics wires an OTel MeterProvider backed by the Prometheus exporter
// and registers the relay's counters against it.
func NewMetrics() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("building prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("transcribe-core/relay")

	requests, err := meter.Int64Counter("relay_requests_total",
		metric.WithDescription("total requests handled by the relay proxy, by route"))
	if err != nil {
		return nil, fmt.Errorf("building requests counter: %w", err)
	}

	providerFailure, err := meter.Int64Counter("relay_provider_failures_total",
		metric.WithDescription("provider connection/stream failures observed by the relay"))
	if err != nil {
		return nil, fmt.Errorf("building provider failure counter: %w", err)
	}

	retries, err := meter.Int64Counter("relay_retries_total",
		metric.WithDescription("fallback-chain retry attempts issued by the relay"))
	if err != nil {
		return nil, fmt.Errorf("building retries counter: %w", err)
	}

	return &Metrics{
		requests:        requests,
		providerFailure: providerFailure,
		retries:         retries,
	}, nil
}

func (m *Metrics) RecordRequest(ctx context.Context, route string) {
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

func (m *Metrics) RecordProviderFailure(ctx context.Context, provider string) {
	m.providerFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (m *Metrics) RecordRetry(ctx context.Context, provider string) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

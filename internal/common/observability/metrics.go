package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records viewer-level instruments through OpenTelemetry; the
// prometheus exporter publishes them on the default registry next to the promauto vectors.
type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	askCounter         otelmetric.Int64Counter
	transitionDuration otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	askCounter, _ := meter.Int64Counter(
		"viewer.asks",
		otelmetric.WithDescription("Questions answered by the agent backend"),
	)

	transitionDuration, _ := meter.Float64Histogram(
		"viewer.style_transition.duration",
		otelmetric.WithDescription("Time from style swap request to the manager returning idle"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:      provider,
		meter:              meter,
		askCounter:         askCounter,
		transitionDuration: transitionDuration,
	}
}

// NewNoop returns an instance whose Record calls do nothing.
func NewNoop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordAsk(ctx context.Context, outcome string) {
	if o == nil || o.askCounter == nil {
		return
	}
	o.askCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordTransition(ctx context.Context, duration time.Duration, outcome, style string) {
	if o == nil || o.transitionDuration == nil {
		return
	}
	o.transitionDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("style", style),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}

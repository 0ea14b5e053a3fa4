package observability

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Outcome labels for RecordOperation.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Observability counts domain API operations (applications.create,
// locations.check_address, ...) through an OpenTelemetry meter exported to
// Prometheus. A zero value records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	opCounter     otelmetric.Int64Counter
	opDuration    otelmetric.Float64Histogram
}

// New registers the exporter with the default Prometheus registry and makes
// the provider global.
func New(serviceName string) *Observability {
	o := NewWithRegisterer(serviceName, prometheus.DefaultRegisterer)
	if o.meterProvider != nil {
		otel.SetMeterProvider(o.meterProvider)
	}
	return o
}

// NewWithRegisterer is New against a caller-owned registry.
func NewWithRegisterer(serviceName string, reg prometheus.Registerer) *Observability {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	opCounter, _ := meter.Int64Counter(
		"console.operations",
		otelmetric.WithDescription("Number of domain API operations by outcome"),
	)

	opDuration, _ := meter.Float64Histogram(
		"console.operation.duration",
		otelmetric.WithDescription("Domain API operation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		opCounter:     opCounter,
		opDuration:    opDuration,
	}
}

// Noop returns an Observability that records nothing.
func Noop() *Observability {
	return &Observability{}
}

func (o *Observability) RecordOperation(ctx context.Context, module, operation, outcome string) {
	if o == nil || o.opCounter == nil {
		return
	}
	o.opCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("module", module),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (o *Observability) RecordDuration(ctx context.Context, module, operation string, duration time.Duration) {
	if o == nil || o.opDuration == nil {
		return
	}
	o.opDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.String("module", module),
		attribute.String("operation", operation),
	))
}

// Track records outcome and duration of one operation. Use as
//
//	defer obs.Track(ctx, "applications", "create", time.Now(), &err)
func (o *Observability) Track(ctx context.Context, module, operation string, start time.Time, errp *error) {
	outcome := OutcomeSuccess
	if errp != nil && *errp != nil {
		outcome = OutcomeFailure
	}
	o.RecordOperation(ctx, module, operation, outcome)
	o.RecordDuration(ctx, module, operation, time.Since(start))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}

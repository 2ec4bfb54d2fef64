package observability

import (
	"context"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Observability records bot run telemetry through an OpenTelemetry meter
// exported on the Prometheus endpoint, and traces runs with an SDK tracer.
// A nil value records nothing.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	candidates     otelmetric.Int64Counter
}

// New registers the exporter with reg, or the default registerer when reg is nil.
func New(serviceName string, reg promclient.Registerer) (*Observability, error) {
	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}

	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	tracerProvider := sdktrace.NewTracerProvider()
	if reg == nil {
		otel.SetMeterProvider(provider)
		otel.SetTracerProvider(tracerProvider)
	}

	meter := provider.Meter(serviceName)

	runCounter, err := meter.Int64Counter(
		"bot.runs",
		otelmetric.WithDescription("Bot runs by final status"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"bot.run.duration",
		otelmetric.WithDescription("Bot run wall time"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	candidates, err := meter.Int64Counter(
		"bot.candidates",
		otelmetric.WithDescription("Candidates processed by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Observability{
		meterProvider:  provider,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
		runCounter:     runCounter,
		runDuration:    runDuration,
		candidates:     candidates,
	}, nil
}

func (o *Observability) RecordRun(ctx context.Context, status string, dryRun bool, duration time.Duration) {
	if o == nil || o.runCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("dry_run", dryRun),
	)
	o.runCounter.Add(ctx, 1, attrs)
	o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

func (o *Observability) RecordCandidate(ctx context.Context, outcome string) {
	if o == nil || o.candidates == nil {
		return
	}
	o.candidates.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("outcome", outcome)))
}

// RegisterSpanProcessor attaches an exporter or recorder to the tracer.
func (o *Observability) RegisterSpanProcessor(sp sdktrace.SpanProcessor) {
	if o == nil || o.tracerProvider == nil {
		return
	}
	o.tracerProvider.RegisterSpanProcessor(sp)
}

// StartSpan starts a span; on a nil Observability the span is a no-op.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}

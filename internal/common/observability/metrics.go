package observability

import (
	"context"
	"time"

	"procurement-harvester/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Observability owns the OpenTelemetry meter and tracer providers of one run.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	runCounter     otelmetric.Int64Counter
	runDuration    otelmetric.Float64Histogram
	mergedRecords  otelmetric.Int64Counter
}

// New registers an OpenTelemetry meter provider backed by the Prometheus exporter.
// A Jaeger tracer provider is installed when jaegerEndpoint is non-empty; otherwise
// spans go to the global no-op tracer.
func New(serviceName, jaegerEndpoint string, log logger.Logger) *Observability {
	o := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
	} else {
		o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
		otel.SetMeterProvider(o.meterProvider)
		o.meter = o.meterProvider.Meter(serviceName)

		o.runCounter, _ = o.meter.Int64Counter(
			"harvest.categories.processed",
			otelmetric.WithDescription("Number of category tasks processed"),
		)
		o.runDuration, _ = o.meter.Float64Histogram(
			"harvest.categories.duration",
			otelmetric.WithDescription("Category task duration"),
			otelmetric.WithUnit("ms"),
		)
		o.mergedRecords, _ = o.meter.Int64Counter(
			"harvest.records.merged",
			otelmetric.WithDescription("New records handed to the merge store"),
		)
	}

	if jaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Warn("Failed to create Jaeger exporter", map[string]interface{}{"error": err.Error()})
		} else {
			o.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exp),
				sdktrace.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceName(serviceName),
				)),
			)
			otel.SetTracerProvider(o.tracerProvider)
			o.tracer = o.tracerProvider.Tracer(serviceName)
		}
	}

	return o
}

// Tracer returns the run tracer; never nil.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("procurement-harvester")
	}
	return o.tracer
}

func (o *Observability) RecordCategory(ctx context.Context, category, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("category", category),
		attribute.String("status", status),
	)
	if o.runCounter != nil {
		o.runCounter.Add(ctx, 1, attrs)
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordMerged(ctx context.Context, category string, n int) {
	if o == nil || o.mergedRecords == nil {
		return
	}
	o.mergedRecords.Add(ctx, int64(n), otelmetric.WithAttributes(attribute.String("category", category)))
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}

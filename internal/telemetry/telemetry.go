// Package telemetry exports pipeline metrics and traces over OTLP.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/pkg/types"
)

// Telemetry records pipeline-level measurements.
type Telemetry interface {
	RecordAnalysis(ctx context.Context, elapsedSeconds float64, hasBugs bool)
	RecordFinding(ctx context.Context, pattern types.Pattern, severity int)
	RecordStage(ctx context.Context, stage string, elapsedSeconds float64, success bool)
	Close(ctx context.Context) error
}

type telemetry struct {
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider

	analysisCounter  metric.Int64Counter
	analysisDuration metric.Float64Histogram
	findingCounter   metric.Int64Counter
	stageDuration    metric.Float64Histogram
}

// New builds the OTLP exporter pipeline. Disabled configuration
// returns a no-op implementation.
func New(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	client := otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	meter := otel.Meter(cfg.ServiceName)

	analysisCounter, err := meter.Int64Counter("codeguard.analyses.total",
		metric.WithDescription("Total number of analyses"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	analysisDuration, err := meter.Float64Histogram("codeguard.analysis.duration",
		metric.WithDescription("Synchronous phase duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	findingCounter, err := meter.Int64Counter("codeguard.findings.total",
		metric.WithDescription("Total number of findings"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("codeguard.stage.duration",
		metric.WithDescription("Per-stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:           tp.Tracer(cfg.ServiceName),
		tracerProvider:   tp,
		analysisCounter:  analysisCounter,
		analysisDuration: analysisDuration,
		findingCounter:   findingCounter,
		stageDuration:    stageDuration,
	}, nil
}

func (t *telemetry) RecordAnalysis(ctx context.Context, elapsedSeconds float64, hasBugs bool) {
	attrs := metric.WithAttributes(attribute.Bool("has_bugs", hasBugs))
	t.analysisCounter.Add(ctx, 1, attrs)
	t.analysisDuration.Record(ctx, elapsedSeconds, attrs)
}

func (t *telemetry) RecordFinding(ctx context.Context, pattern types.Pattern, severity int) {
	t.findingCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pattern", string(pattern)),
		attribute.String("severity_band", types.SeverityLabel(severity)),
	))
}

func (t *telemetry) RecordStage(ctx context.Context, stage string, elapsedSeconds float64, success bool) {
	t.stageDuration.Record(ctx, elapsedSeconds, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	))
}

func (t *telemetry) Close(ctx context.Context) error {
	if t.tracerProvider != nil {
		return t.tracerProvider.Shutdown(ctx)
	}
	return nil
}

type noopTelemetry struct{}

func (n *noopTelemetry) RecordAnalysis(ctx context.Context, elapsedSeconds float64, hasBugs bool) {}
func (n *noopTelemetry) RecordFinding(ctx context.Context, pattern types.Pattern, severity int)  {}
func (n *noopTelemetry) RecordStage(ctx context.Context, stage string, elapsedSeconds float64, success bool) {
}
func (n *noopTelemetry) Close(ctx context.Context) error { return nil }

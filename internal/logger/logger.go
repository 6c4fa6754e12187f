package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/codeguard/codeguard/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap with OpenTelemetry log correlation and span helpers.
type Logger struct {
	*zap.SugaredLogger
	otelCore   *otelzap.Core
	tracer     trace.Tracer
	baseLogger *zap.Logger
}

func New(cfg config.LoggerConfig) (*Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	if len(cfg.OutputPaths) > 0 {
		zapConfig.OutputPaths = cfg.OutputPaths
	}

	zapConfig.InitialFields = map[string]interface{}{
		"service": "codeguard",
	}

	baseLogger, err := zapConfig.Build(
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	otelCore := otelzap.NewCore("codeguard",
		otelzap.WithAttributes(
			attribute.String("service", "codeguard"),
		),
	)

	core := zapcore.NewTee(baseLogger.Core(), otelCore)
	enhanced := zap.New(core, zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		SugaredLogger: enhanced.Sugar(),
		otelCore:      otelCore,
		tracer:        otel.Tracer("codeguard"),
		baseLogger:    enhanced,
	}, nil
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		spanCtx := span.SpanContext()
		return &Logger{
			SugaredLogger: l.With(
				"trace_id", spanCtx.TraceID().String(),
				"span_id", spanCtx.SpanID().String(),
			),
			otelCore:   l.otelCore,
			tracer:     l.tracer,
			baseLogger: l.baseLogger,
		}
	}
	return l
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.With(fields...),
		otelCore:      l.otelCore,
		tracer:        l.tracer,
		baseLogger:    l.baseLogger,
	}
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.WithFields("component", component)
}

func (l *Logger) WithAnalysisID(id string) *Logger {
	return l.WithFields("analysis_id", id)
}

func (l *Logger) WithDetector(name string) *Logger {
	return l.WithFields("detector", name)
}

func (l *Logger) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if l.tracer == nil {
		l.tracer = otel.Tracer("codeguard")
	}
	return l.tracer.Start(ctx, name, opts...)
}

// LogDuration emits a completion record with elapsed time and mirrors
// it onto the active span, if any.
func (l *Logger) LogDuration(ctx context.Context, operation string, start time.Time, fields ...interface{}) {
	duration := time.Since(start)

	allFields := []interface{}{
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	}
	allFields = append(allFields, fields...)

	l.WithContext(ctx).Infow("Operation completed", allFields...)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent("operation_completed", trace.WithAttributes(
			attribute.String("operation", operation),
			attribute.Int64("duration_ms", duration.Milliseconds()),
		))
	}
}

func (l *Logger) LogError(ctx context.Context, err error, operation string, fields ...interface{}) {
	if err == nil {
		return
	}

	allFields := []interface{}{
		"error", err.Error(),
		"operation", operation,
		"error_type", fmt.Sprintf("%T", err),
	}
	allFields = append(allFields, fields...)

	l.WithContext(ctx).Errorw("Operation failed", allFields...)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// StartOperation opens a span and logs the start of a named operation.
func (l *Logger) StartOperation(ctx context.Context, operation string, fields ...interface{}) (context.Context, trace.Span) {
	ctx, span := l.StartSpan(ctx, operation)

	allFields := []interface{}{"operation", operation}
	allFields = append(allFields, fields...)
	l.WithContext(ctx).Debugw("Operation started", allFields...)

	return ctx, span
}

// FinishOperation closes the span opened by StartOperation, logging the
// outcome and elapsed time.
func (l *Logger) FinishOperation(ctx context.Context, span trace.Span, operation string, start time.Time, err error, fields ...interface{}) {
	defer span.End()

	allFields := []interface{}{
		"operation", operation,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	allFields = append(allFields, fields...)

	if err != nil {
		l.LogError(ctx, err, operation, allFields...)
		return
	}
	l.WithContext(ctx).Debugw("Operation completed successfully", allFields...)
	span.SetStatus(codes.Ok, "completed")
}

// LogStage records the outcome of one pipeline stage for an analysis.
func (l *Logger) LogStage(ctx context.Context, analysisID, stage string, success bool, elapsed time.Duration, stageErr error) {
	fields := []interface{}{
		"analysis_id", analysisID,
		"stage", stage,
		"success", success,
		"elapsed_s", elapsed.Seconds(),
	}
	if stageErr != nil {
		fields = append(fields, "error", stageErr.Error())
		l.WithContext(ctx).Warnw("Stage finished with error", fields...)
		return
	}
	l.WithContext(ctx).Infow("Stage finished", fields...)
}

type contextKey struct{}

var loggerKey = contextKey{}

func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey).(*Logger); ok {
		return logger
	}
	logger, _ := New(config.LoggerConfig{Level: "info", Format: "json"})
	return logger
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Nop returns a logger that discards everything. Used in tests.
func Nop() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		tracer:        otel.Tracer("codeguard/nop"),
		baseLogger:    zap.NewNop(),
	}
}

// Package tracing wires OpenTelemetry spans around pipeline lifecycle and
// offline reprocessing. Finished spans are written to the application log,
// there is no remote collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tphakala/voicecap/internal/logger"
)

// tracerName is the instrumentation scope name for voicecap spans.
const tracerName = "github.com/tphakala/voicecap"

// Tracer returns the voicecap tracer from the globally registered provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// WithLogTraceID copies the trace ID of the span in ctx into ctx for
// logger.WithContext. ctx is returned as is when it carries no valid span.
func WithLogTraceID(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ctx
	}
	return logger.WithTraceID(ctx, sc.TraceID().String())
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Init installs a tracer provider that logs finished spans at debug level
// through log. The returned function flushes and shuts the provider down.
func Init(log logger.Logger) (shutdown func(context.Context) error) {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&logExporter{log: log}),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// logExporter is a span exporter that writes spans to a Logger
type logExporter struct {
	log logger.Logger
}

// ExportSpans implements sdktrace.SpanExporter
func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		fields := []logger.Field{
			logger.String("span", span.Name()),
			logger.String("trace_id", span.SpanContext().TraceID().String()),
			logger.Duration("duration", span.EndTime().Sub(span.StartTime())),
		}
		for _, kv := range span.Attributes() {
			fields = append(fields, logger.Any(string(kv.Key), kv.Value.AsInterface()))
		}

		if span.Status().Code == codes.Error {
			e.log.Warn("span finished with error", append(fields, logger.String("status", span.Status().Description))...)
			continue
		}
		e.log.Debug("span finished", fields...)
	}
	return ctx.Err()
}

// Shutdown implements sdktrace.SpanExporter
func (e *logExporter) Shutdown(context.Context) error {
	return nil
}

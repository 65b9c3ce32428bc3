package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer sets the tracer used by StartSpan.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// Setup installs a tracer provider that batches spans into the given exporter and registers it globally.
// The returned function flushes and shuts the provider down.
func Setup(serviceName string, exporter sdktrace.SpanExporter) func(context.Context) error {
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	SetTracer(provider.Tracer(serviceName))
	return provider.Shutdown
}

// StartSpan starts a new span with the given name and returns the context and span.
// Without a tracer the span is a no-op.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// GetTraceID returns the trace ID of the active span, or "" when there is none.
func GetTraceID(ctx context.Context) string {
	if tracer == nil {
		return ""
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// NoopExporter drops every span. Used when no collector is configured.
type NoopExporter struct{}

func (NoopExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (NoopExporter) Shutdown(ctx context.Context) error {
	return nil
}

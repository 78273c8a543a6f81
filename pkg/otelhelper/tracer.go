// Package otelhelper provides OpenTelemetry tracing for workflow editing operations.
package otelhelper

import (
	"context"
	"fmt"

	"github.com/dukex/flowpilot/pkg/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	WorkflowIDKey      = "flowpilot.workflow.id"
	WorkflowVersionKey = "flowpilot.workflow.version"
	NodeCountKey       = "flowpilot.graph.nodes"
	EdgeCountKey       = "flowpilot.graph.edges"
	CommandTypeKey     = "flowpilot.command.type"
	ErrorTypeKey       = "flowpilot.error.type"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

// NewTracer installs an OTLP/HTTP tracer provider configured from the standard OTEL_* variables.
// sampleRatio is applied to root spans; children follow their parent. Values >= 1 sample all.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string, sampleRatio float64) (trace.Tracer, ShutdownFunc, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	provider, err := NewTracerProvider(serviceName, sampleRatio, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, nil, err
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// NewTracerProvider builds a provider tagged with serviceName. Extra options add span processors
// or exporters.
func NewTracerProvider(serviceName string, sampleRatio float64, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	opts = append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(r),
		sdktrace.WithSampler(sampler(sampleRatio)),
	}, opts...)

	return sdktrace.NewTracerProvider(opts...), nil
}

// nolint:ireturn
func sampler(ratio float64) sdktrace.Sampler {
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// NoopTracer returns a tracer that records nothing.
// nolint:ireturn
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("flowpilot")
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// GraphAttributes describes the size of g.
func GraphAttributes(g *models.WorkflowGraph) []attribute.KeyValue {
	if g == nil {
		return nil
	}

	return []attribute.KeyValue{
		attribute.Int(NodeCountKey, len(g.Nodes)),
		attribute.Int(EdgeCountKey, len(g.Edges)),
		attribute.Int(WorkflowVersionKey, g.Version),
	}
}

// SetError marks span as failed with err and records the error's Go type.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err, trace.WithAttributes(append(attrs,
		attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err)),
	)...))
	span.SetStatus(codes.Error, err.Error())
}

// Functions for working with OpenTelemetry across botdeploy.

package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/nais/botdeploy/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otrace "go.opentelemetry.io/otel/trace"
)

// How long between each time OT sends something to the collector.
const batchTimeout = 5 * time.Second

const instrumentationName = "github.com/nais/botdeploy"

const (
	AttributeApp           = attribute.Key("botdeploy.app")
	AttributeBuildID       = attribute.Key("botdeploy.build_id")
	AttributeCorrelationID = attribute.Key("botdeploy.correlation_id")
	AttributeRepository    = attribute.Key("botdeploy.repository")
	AttributeRole          = attribute.Key("botdeploy.role")
)

// Initialize the OpenTelemetry library.
//
// Spans are only exported when collectorEndpointURL is set.
// You MUST call `Shutdown()` on the tracer provider before exiting,
// lest traces are not sent to the collector.
func New(ctx context.Context, serviceName string, collectorEndpointURL string) (*trace.TracerProvider, error) {
	prop := newPropagator()
	otel.SetTextMapPropagator(prop)

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.OSName(runtime.GOOS),
		semconv.ServiceVersion(version.Version()),
	)

	tracerProvider, err := newTraceProvider(ctx, res, collectorEndpointURL)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tracerProvider)

	return tracerProvider, nil
}

// Returns the botdeploy tracer from the global provider.
// Before `New()` is called, spans are discarded.
func Tracer() otrace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Propagator returns the text map propagator used for incoming and outgoing requests.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// MarkFailed records err on the span and sets its status to error.
func MarkFailed(span otrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTraceProvider(ctx context.Context, res *resource.Resource, endpointURL string) (*trace.TracerProvider, error) {
	if len(endpointURL) == 0 {
		return trace.NewTracerProvider(trace.WithResource(res)), nil
	}

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpointURL))
	if err != nil {
		return nil, err
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter,
			trace.WithBatchTimeout(batchTimeout)),
		trace.WithResource(res),
	)

	return traceProvider, nil
}

// Package otelx installs the global OpenTelemetry tracer provider and
// propagator. Spans are exported over OTLP gRPC to a local collector.
package otelx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"

	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// dialTimeout bounds exporter creation, which otherwise blocks without limit.
const dialTimeout = 3 * time.Second

type Options struct {
	Enabled  bool
	Endpoint string // host:port
	Insecure bool
	// Sample is the ratio of new root traces kept. Children follow their
	// parent's decision.
	Sample    float64
	Service   string
	Component string
	Version   string
}

// ShutdownFunc flushes and stops the provider. It is never nil.
type ShutdownFunc func(context.Context) error

// Init always installs a provider and the W3C propagators, so incoming
// trace context is carried through even when export is off or failed.
func Init(ctx context.Context, o Options) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if !o.Enabled {
		return install(unsampled()), nil
	}

	exp, err := newExporter(ctx, o)
	if err != nil {
		return install(unsampled()), xerrors.Wrapf(err, "otlp exporter %s", o.Endpoint)
	}
	return install(sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.Sample))),
		sdktrace.WithBatcher(exp, sdktrace.WithMaxQueueSize(2048), sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(newResource(ctx, o)),
	)), nil
}

// unsampled starts no root traces of its own, so spans without a sampled
// parent do not record.
func unsampled() *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.NeverSample())))
}

func install(tp *sdktrace.TracerProvider) ShutdownFunc {
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func newExporter(ctx context.Context, o Options) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(o.Service + "/" + o.Version)),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	return otlptracegrpc.New(ctx, opts...)
}

// newResource names the service "<service>.<component>". Detector errors
// are partial results and are ignored.
func newResource(ctx context.Context, o Options) *resource.Resource {
	res, _ := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(o.Service+"."+o.Component),
			semconv.ServiceVersionKey.String(o.Version),
		),
	)
	return res
}

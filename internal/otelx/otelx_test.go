package otelx

import (
	"context"
	"slices"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(t.Context(), Options{Sample: 99, Endpoint: "ignored"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("provider = %T", otel.GetTracerProvider())
	}

	_, span := otel.Tracer("draftsite").Start(t.Context(), "serve")
	if span.SpanContext().IsSampled() {
		t.Fatal("disabled tracing sampled a span")
	}
	span.End()

	for range 2 {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}

func TestInit_Propagators(t *testing.T) {
	if _, err := Init(t.Context(), Options{}); err != nil {
		t.Fatal(err)
	}
	fields := otel.GetTextMapPropagator().Fields()
	for _, want := range []string{"traceparent", "tracestate", "baggage"} {
		if !slices.Contains(fields, want) {
			t.Errorf("propagator fields %v lack %s", fields, want)
		}
	}

	// an incoming traceparent survives a round trip
	carrier := propagation.MapCarrier{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
	out := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, out)
	if out["traceparent"] != carrier["traceparent"] {
		t.Fatalf("traceparent = %q", out["traceparent"])
	}
}

func TestInit_EnabledUnreachable(t *testing.T) {
	start := time.Now()
	shutdown, err := Init(t.Context(), Options{
		Enabled:   true,
		Endpoint:  "127.0.0.1:1",
		Insecure:  true,
		Sample:    1,
		Service:   "draftsite",
		Component: "test",
		Version:   "v0.0.0-test",
	})
	if elapsed := time.Since(start); elapsed > dialTimeout+2*time.Second {
		t.Fatalf("Init took %v", elapsed)
	}
	if shutdown == nil {
		t.Fatalf("nil shutdown (err %v)", err)
	}

	// gRPC connects lazily, so export failures only show up at shutdown
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestNewResource(t *testing.T) {
	res := newResource(t.Context(), Options{Service: "draftsite", Component: "server", Version: "1.2.3"})
	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["service.name"] != "draftsite.server" || attrs["service.version"] != "1.2.3" {
		t.Fatalf("attributes = %v", attrs)
	}
}

func TestUnsampled(t *testing.T) {
	tp := unsampled()
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("draftsite")

	_, root := tracer.Start(t.Context(), "GET /")
	if root.IsRecording() || root.SpanContext().IsSampled() {
		t.Fatal("root span recorded without an exporter")
	}
	root.End()

	// an upstream that sampled still gets its child spans
	carrier := propagation.MapCarrier{"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	parent := propagation.TraceContext{}.Extract(t.Context(), carrier)
	_, child := tracer.Start(parent, "GET /")
	if !child.SpanContext().IsSampled() {
		t.Fatal("sampled parent not followed")
	}
	child.End()
}

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
)

func hit(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMiddleware_Labels(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Get("/api/draft-mode", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Post("/api/draft-mode", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	r.Get("/posts/{slug}", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("post body")) })
	h := m.Middleware(r)

	hit(h, http.MethodGet, "/api/draft-mode")
	hit(h, http.MethodPost, "/api/draft-mode")
	hit(h, http.MethodGet, "/posts/one")
	hit(h, http.MethodGet, "/posts/two")
	hit(h, http.MethodGet, "/nowhere")

	tests := []struct {
		method, route, status string
		want                  float64
	}{
		{"GET", "/api/draft-mode", "204", 1},
		{"POST", "/api/draft-mode", "502", 1},
		{"GET", "/posts/{slug}", "200", 2},
		{"GET", "unmatched", "404", 1},
	}
	for _, tt := range tests {
		if v := testutil.ToFloat64(m.http.requests.WithLabelValues(tt.method, tt.route, tt.status)); v != tt.want {
			t.Errorf("%s %s %s = %v, want %v", tt.method, tt.route, tt.status, v, tt.want)
		}
	}
	if v := testutil.ToFloat64(m.http.errors.WithLabelValues("POST", "/api/draft-mode")); v != 1 {
		t.Errorf("5xx errors = %v", v)
	}
	if n := testutil.CollectAndCount(m.http.errors); n != 1 {
		t.Errorf("error series = %d, only 5xx counts", n)
	}
	if n := testutil.CollectAndCount(m.http.duration); n != 4 {
		t.Errorf("duration series = %d", n)
	}
}

func TestMiddleware_DefaultStatusAndSize(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 1000))
	}))
	rec := hit(h, http.MethodGet, "/")
	if rec.Code != http.StatusOK || rec.Body.Len() != 1000 {
		t.Fatalf("passthrough status=%d len=%d", rec.Code, rec.Body.Len())
	}

	silent := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	hit(silent, http.MethodHead, "/")

	if v := testutil.ToFloat64(m.http.requests.WithLabelValues("GET", "unmatched", "200")); v != 1 {
		t.Fatalf("GET 200 = %v", v)
	}
	if v := testutil.ToFloat64(m.http.requests.WithLabelValues("HEAD", "unmatched", "200")); v != 1 {
		t.Fatalf("HEAD 200 = %v", v)
	}
	mf := family(t, m.reg, "http_response_size_bytes")
	for _, s := range mf.GetMetric() {
		if labels(s)["method"] == "GET" && s.GetHistogram().GetSampleSum() != 1000 {
			t.Fatalf("size sum = %v", s.GetHistogram().GetSampleSum())
		}
	}
}

func TestMiddleware_Inflight(t *testing.T) {
	m := New()
	var during float64
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(m.http.inflight)
	}))
	hit(h, http.MethodGet, "/")
	if during != 1 || testutil.ToFloat64(m.http.inflight) != 0 {
		t.Fatalf("inflight during=%v after=%v", during, testutil.ToFloat64(m.http.inflight))
	}
}

func TestMiddleware_InstallsRouteContext(t *testing.T) {
	m := New()
	var rc *chi.Context
	h := m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		rc = chi.RouteContext(r.Context())
	}))
	hit(h, http.MethodGet, "/")
	if rc == nil {
		t.Fatal("no chi route context")
	}
}

func TestTraceExemplar(t *testing.T) {
	tid := trace.TraceID{1, 2, 3}
	sid := trace.SpanID{4}
	tests := []struct {
		name  string
		ctx   context.Context
		exist bool
	}{
		{"no span", context.Background(), false},
		{"unsampled", trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})), false},
		{"invalid", trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{TraceFlags: trace.FlagsSampled})), false},
		{"sampled", trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})), true},
	}
	for _, tt := range tests {
		ex := traceExemplar(tt.ctx)
		if (ex != nil) != tt.exist {
			t.Fatalf("%s: exemplar = %v", tt.name, ex)
		}
		if ex != nil && ex["trace_id"] != tid.String() {
			t.Fatalf("%s: trace_id = %q", tt.name, ex["trace_id"])
		}
	}
}

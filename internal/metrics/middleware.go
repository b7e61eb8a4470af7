package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Middleware records in-flight, count, latency and size per chi route.
// Requests no route matched are labelled "unmatched".
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// give chi somewhere to record the pattern when we run outside a router
		if chi.RouteContext(r.Context()) == nil {
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
		}

		m.http.inflight.Inc()
		snoop := httpsnoop.CaptureMetrics(next, w, r)
		m.http.inflight.Dec()

		method, route := r.Method, routeOf(r)
		m.http.requests.WithLabelValues(method, route, strconv.Itoa(snoop.Code)).Inc()
		if snoop.Code >= http.StatusInternalServerError {
			m.http.errors.WithLabelValues(method, route).Inc()
		}
		observe(m.http.duration.WithLabelValues(method, route), snoop.Duration.Seconds(), traceExemplar(r.Context()))
		m.http.size.WithLabelValues(method, route).Observe(float64(snoop.Written))
	})
}

func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func observe(o prometheus.Observer, v float64, ex prometheus.Labels) {
	if eo, ok := o.(prometheus.ExemplarObserver); ok && ex != nil {
		eo.ObserveWithExemplar(v, ex)
		return
	}
	o.Observe(v)
}

// traceExemplar links a latency sample to its trace when the trace is sampled.
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}

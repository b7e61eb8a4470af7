package opshttp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/keithlinneman/draftsite/internal/health"
	"github.com/keithlinneman/draftsite/internal/httpserver"
	"github.com/keithlinneman/draftsite/internal/log"
)

// NewHandler builds the ops router: /healthz, /readyz, /metrics, /-/content
// and, when enabled, /debug/pprof. Only non-public peers get through.
func NewHandler(L log.Logger, opts Options) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	r := chi.NewRouter()

	r.Get("/healthz", health.HealthzHandler(opts.Health))
	r.Get("/readyz", health.ReadyzHandler(opts.Readiness))

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Content != nil {
		r.Get("/-/content", contentStatusHandler(opts.Content))
	}
	if opts.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}

	return requireNonPublicNetwork(L, r)
}

// Start serves the ops handler on opts.Port (default 9000).
func Start(ctx context.Context, L log.Logger, opts Options) (func(context.Context) error, error) {
	if L == nil {
		L = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = 9000
	}
	return httpserver.Listen(ctx, L, "ops http", fmt.Sprintf(":%d", port), NewHandler(L, opts))
}

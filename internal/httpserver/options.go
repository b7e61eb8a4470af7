package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/draftsite/internal/health"
	"github.com/keithlinneman/draftsite/internal/httpmw"
	"github.com/keithlinneman/draftsite/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()

	ClientIPOpts httpmw.ClientIPOptions
	Security     httpmw.SecurityOptions

	RateLimitMW func(http.Handler) http.Handler
	MetricsMW   func(http.Handler) http.Handler

	// AccessLogFields adds attributes to each access log line.
	AccessLogFields func(*http.Request) []any

	// RedactQuery names query parameters masked in the url.query span attribute.
	RedactQuery []string

	// PreviewMW activates draft sessions (preview.Gateway.Middleware).
	PreviewMW func(http.Handler) http.Handler
	// ResolveMW stores the request's site version on the context
	// (preview.Resolver.Middleware). It runs after PreviewMW so it sees the
	// cookies the gateway injected.
	ResolveMW func(http.Handler) http.Handler

	Health    health.Checker
	Readiness health.Checker

	// ContentInfo feeds X-Site-Version, X-Content-Bundle-Version and X-Content-Hash.
	ContentInfo httpmw.ContentInfo

	// APIRoutes registers explicit routes (activation endpoint, content API).
	APIRoutes func(chi.Router)
	// SiteHandler serves everything no explicit route matched.
	SiteHandler http.Handler
}

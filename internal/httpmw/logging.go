package httpmw

import (
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/draftsite/internal/log"
)

// RedactedValue replaces masked query parameter values.
const RedactedValue = "REDACTED"

// WithLogger stores a request-scoped logger on the context. Only values the
// server derived itself become fields. The raw query string goes to the span
// alone, with every parameter named in redact masked (the draft secret
// arrives as a query parameter).
func WithLogger(base log.Logger, redact ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			f := requestFieldsOf(r)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("request_id", f.requestID),
					attribute.String("client.address", f.client),
					attribute.String("network.peer.address", f.peer),
					attribute.String("url.scheme", f.scheme),
				)
				if r.URL.RawQuery != "" {
					span.SetAttributes(attribute.String("url.query", redactQuery(r.URL.RawQuery, redact)))
				}
			}

			L := base.With(
				"request_id", f.requestID,
				"client.address", f.client,
				"network.peer.address", f.peer,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
				"url.scheme", f.scheme,
			)
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx, L)))
		})
	}
}

type requestFields struct {
	requestID string
	client    string
	peer      string
	scheme    string
}

func requestFieldsOf(r *http.Request) requestFields {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	client := ClientIPFromContext(r.Context())
	if client == "" {
		client = peer
	}
	return requestFields{
		requestID: RequestIDFromContext(r.Context()),
		client:    client,
		peer:      peer,
		scheme:    schemeFromRequest(r),
	}
}

// redactQuery masks the named parameters. A query that does not parse is
// dropped whole since it may still carry a secret.
func redactQuery(raw string, keys []string) string {
	if raw == "" || len(keys) == 0 {
		return raw
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparseable]"
	}
	masked := false
	for _, k := range keys {
		for i := range vals[k] {
			vals[k][i] = RedactedValue
			masked = true
		}
	}
	if !masked {
		return raw
	}
	return vals.Encode()
}

// Quiet reports whether p is a health check or static asset. Those requests
// are neither traced nor access-logged.
func Quiet(p string) bool {
	switch p {
	case "/favicon.ico", "/favicon.svg", "/robots.txt", "/-/healthy", "/-/ready":
		return true
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".css", ".js", ".png", ".jpg", ".jpeg", ".webp", ".svg", ".ico", ".woff", ".woff2", ".map":
		return true
	}
	return false
}

// AccessLogOptions tunes AccessLog.
type AccessLogOptions struct {
	// Skip suppresses the log line. Defaults to Quiet on the request path.
	Skip func(*http.Request) bool
	// Fields appends attributes once the handler returned, e.g. the site
	// version the request was served from.
	Fields func(*http.Request) []any
}

// AccessLog writes one "http request" line per response through the logger
// WithLogger put on the context.
func AccessLog(opts AccessLogOptions) Middleware {
	skip := opts.Skip
	if skip == nil {
		skip = func(r *http.Request) bool { return Quiet(r.URL.Path) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newRecorder(w, r)
			next.ServeHTTP(rec, r)
			rec.close()

			if skip(r) {
				return
			}
			ctx := r.Context()
			L := log.FromContext(ctx)

			route := r.URL.Path
			if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			var bodySize int64
			if r.ContentLength > 0 {
				bodySize = r.ContentLength
			}

			kv := []any{
				"http.response.status_code", rec.Status(),
				"http.server.request.duration", time.Since(rec.started).Seconds(),
				"http.response.body.size", rec.written,
				"http.request.body.size", bodySize,
				"http.route", route,
			}
			if opts.Fields != nil {
				kv = append(kv, opts.Fields(r)...)
			}
			L.Info(ctx, "http request", kv...)
		})
	}
}

var validSchemes = map[string]bool{"http": true, "https": true}

// schemeFromRequest only ever returns "http" or "https".
func schemeFromRequest(r *http.Request) string {
	// ClientIP strips X-Forwarded-Proto from untrusted peers
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		first, _, _ := strings.Cut(xf, ",")
		if p := strings.ToLower(strings.TrimSpace(first)); validSchemes[p] {
			return p
		}
	}
	if r.URL != nil {
		if p := strings.ToLower(r.URL.Scheme); validSchemes[p] {
			return p
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// Scope tags the logger and span with the handler serving a route group.
func Scope(handler string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("handler", handler))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

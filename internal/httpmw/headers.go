package httpmw

import (
	"fmt"
	"maps"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self'; style-src 'self'; img-src 'self'; font-src 'self'; " +
	"base-uri 'self'; form-action 'self'; frame-ancestors %s; object-src 'none'; upgrade-insecure-requests"

// baseSecurityHeaders go on every response regardless of options.
var baseSecurityHeaders = map[string]string{
	"Strict-Transport-Security":         "max-age=31536000; includeSubDomains; preload",
	"X-Content-Type-Options":            "nosniff",
	"Referrer-Policy":                   "strict-origin-when-cross-origin",
	"Permissions-Policy":                "accelerometer=(), camera=(), geolocation=(), gyroscope=(), magnetometer=(), microphone=(), payment=(), usb=()",
	"X-Permitted-Cross-Domain-Policies": "none",
	"Cross-Origin-Embedder-Policy":      "require-corp",
	"Cross-Origin-Opener-Policy":        "same-origin",
	"Cross-Origin-Resource-Policy":      "same-origin",
}

// SecurityOptions tunes the headers that vary by deployment.
type SecurityOptions struct {
	// FrameAncestors may frame the site, e.g. a CMS that shows drafts in
	// an iframe. Empty denies framing.
	FrameAncestors []string
}

func (o SecurityOptions) headers() map[string]string {
	h := maps.Clone(baseSecurityHeaders)

	var allowed []string
	for _, origin := range o.FrameAncestors {
		origin = strings.TrimSpace(origin)
		// an origin must not be able to add directives or sources
		if origin != "" && !strings.ContainsAny(origin, "; \t\r\n,") {
			allowed = append(allowed, origin)
		}
	}
	if len(allowed) == 0 {
		h["Content-Security-Policy"] = fmt.Sprintf(contentSecurityPolicy, "'none'")
		h["X-Frame-Options"] = "DENY"
		return h
	}
	// X-Frame-Options has no allow list, so framing is left to CSP alone
	h["Content-Security-Policy"] = fmt.Sprintf(contentSecurityPolicy, "'self' "+strings.Join(allowed, " "))
	return h
}

// SecurityHeaders sets the security headers before next runs, so they are
// present on every response including errors.
func SecurityHeaders(opts SecurityOptions) Middleware {
	set := opts.headers()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for k, v := range set {
				w.Header().Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContentStamp identifies the content a response is rendered from.
type ContentStamp struct {
	SiteVersion   string // Live or Working
	BundleVersion string
	Hash          string
}

// ContentInfo reports the content that will serve r. Draft sessions read a
// different bundle than everyone else, so the answer is per request.
type ContentInfo interface {
	ContentFor(r *http.Request) ContentStamp
}

type ContentInfoFunc func(r *http.Request) ContentStamp

func (f ContentInfoFunc) ContentFor(r *http.Request) ContentStamp { return f(r) }

// ContentHeaders stamps the response and the request span with the site
// version and bundle that serve r. Unknown values are left out.
func ContentHeaders(info ContentInfo) Middleware {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := info.ContentFor(r)
			span := trace.SpanFromContext(r.Context())
			for _, f := range []struct{ header, attr, value, headerValue string }{
				{"X-Site-Version", "content.site_version", st.SiteVersion, st.SiteVersion},
				{"X-Content-Bundle-Version", "content.version", st.BundleVersion, st.BundleVersion},
				{"X-Content-Hash", "content.hash", st.Hash, shortHash(st.Hash)},
			} {
				if f.value == "" {
					continue
				}
				w.Header().Set(f.header, f.headerValue)
				if span.IsRecording() {
					span.SetAttributes(attribute.String(f.attr, f.value))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

package httpserver

import (
	"cmp"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/draftsite/internal/health"
	"github.com/keithlinneman/draftsite/internal/httpmw"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

// NewHandler builds the public handler: the middleware chain wrapped around
// a chi router. main() owns *http.Server so it can do graceful shutdown.
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return httpmw.Chain(newRouter(opts), middlewares(opts)...)
}

// middlewares returns the chain outermost first. Nil entries are skipped.
func middlewares(opts Options) []httpmw.Middleware {
	var recoverMW httpmw.Middleware
	if opts.UseRecoverMW {
		recoverMW = httpmw.Recover(opts.Logger, opts.OnPanic)
	}
	var contentMW httpmw.Middleware
	if opts.ContentInfo != nil {
		contentMW = httpmw.ContentHeaders(opts.ContentInfo)
	}

	return []httpmw.Middleware{
		// outermost so headers land on every response, panics included
		httpmw.SecurityHeaders(opts.Security),
		recoverMW,
		httpmw.RequestID("X-Request-Id"),
		// before the limiter and logger, both key on the resolved address
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		opts.RateLimitMW,
		tracing,
		httpmw.TraceResponseHeaders("X-Trace-Id", "X-Span-Id"),
		opts.MetricsMW,
		httpmw.WithLogger(opts.Logger, opts.RedactQuery...),
		opts.PreviewMW,
		opts.ResolveMW,
		contentMW,
	}
}

// compressible are the content types worth compressing. Images other than
// SVG are already compressed.
var compressible = []string{
	"text/html", "text/css", "text/plain", "text/javascript",
	"application/javascript", "application/json", "application/manifest+json",
	"image/svg+xml", "image/x-icon",
}

// compressor prefers zstd, then gzip, both from klauspost/compress.
func compressor(level int) *middleware.Compressor {
	c := middleware.NewCompressor(level, compressible...)
	c.SetEncoder("gzip", func(w io.Writer, level int) io.Writer {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil
		}
		return gw
	})
	c.SetEncoder("zstd", func(w io.Writer, level int) io.Writer {
		zw, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil
		}
		return zw
	})
	return c
}

func newRouter(opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(compressor(5).Handler)
	// names the span and access log route after the chi pattern
	r.Use(httpmw.AnnotateHTTPRoute)
	r.Use(httpmw.AccessLog(httpmw.AccessLogOptions{Fields: opts.AccessLogFields}))
	// the only bodies accepted are empty POSTs to the preview API
	r.Use(httpmw.MaxBody(1024))

	if opts.Health != nil {
		r.Get("/-/healthy", health.HealthzHandler(opts.Health))
	}
	if opts.Readiness != nil {
		r.Get("/-/ready", health.ReadyzHandler(opts.Readiness))
	}
	if opts.APIRoutes != nil {
		opts.APIRoutes(r)
	}
	if site := opts.SiteHandler; site != nil {
		r.NotFound(site.ServeHTTP)
		r.MethodNotAllowed(site.ServeHTTP)
	}
	return r
}

// shouldTrace leaves out health checks and static assets, which are high
// volume and say nothing about a request path.
func shouldTrace(p string) bool {
	return !httpmw.Quiet(p) && !strings.HasPrefix(p, "/-/")
}

func tracing(next http.Handler) http.Handler {
	return otelhttp.NewHandler(next, "http.server",
		otelhttp.WithFilter(func(r *http.Request) bool { return shouldTrace(r.URL.Path) }),
		// AnnotateHTTPRoute swaps the path for the route pattern once routed
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string { return r.Method + " " + r.URL.Path }),
		otelhttp.WithPublicEndpointFn(func(*http.Request) bool { return true }),
	)
}

// Limits bounds how long a client may hold a connection and how much header
// it may send.
type Limits struct {
	ReadHeader, Read, Write, Idle time.Duration
	MaxHeaderBytes                int
	// Drain is how long Shutdown waits for in-flight requests.
	Drain time.Duration
}

// DefaultLimits apply to both the public and the ops listener.
var DefaultLimits = Limits{
	ReadHeader:     5 * time.Second,
	Read:           10 * time.Second,
	Write:          10 * time.Second,
	Idle:           time.Minute,
	MaxHeaderBytes: 1 << 20,
	Drain:          5 * time.Second,
}

func (l Limits) server(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: l.ReadHeader,
		ReadTimeout:       l.Read,
		WriteTimeout:      l.Write,
		IdleTimeout:       l.Idle,
		MaxHeaderBytes:    l.MaxHeaderBytes,
	}
}

// Start serves the public handler on opts.Port (default 8080).
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
		opts.Logger = L
	}
	addr := net.JoinHostPort("", strconv.Itoa(cmp.Or(opts.Port, 8080)))
	return Listen(ctx, L, "http", addr, NewHandler(opts))
}

// Listen binds addr before returning, then serves handler in the background.
// The returned stop may be called more than once; later calls return nil.
func Listen(ctx context.Context, L log.Logger, name, addr string, handler http.Handler) (func(context.Context) error, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "%s: listen on %s", name, addr)
	}
	limits := DefaultLimits
	srv := limits.server(addr, handler)
	L = L.With("listener", name)

	go func() {
		L.Info(ctx, "listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "serve failed")
		}
	}()

	var stopped atomic.Bool
	return func(sctx context.Context) error {
		if !stopped.CompareAndSwap(false, true) {
			return nil
		}
		L.Info(sctx, "shutting down")
		sctx, cancel := context.WithTimeout(sctx, limits.Drain)
		defer cancel()
		return srv.Shutdown(sctx)
	}, nil
}

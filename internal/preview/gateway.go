package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/draftsite/internal/cookiejar"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/xerrors"
)

const DefaultActivationTimeout = 3 * time.Second

// Observer receives one call per activation attempt.
// metrics.ServerMetrics implements it.
type Observer interface {
	ObservePreviewActivation(outcome string, d time.Duration)
}

type GatewayOptions struct {
	Secret Secret
	Names  Names

	// ActivationURL is the absolute URL of the activation endpoint, normally
	// on loopback: http://127.0.0.1:<port>/api/draft-mode.
	ActivationURL string

	// Client defaults to a client with an otelhttp transport that does not
	// follow redirects.
	Client  *http.Client
	Timeout time.Duration

	Logger   log.Logger
	Observer Observer
}

// Gateway is the activation middleware. It is safe for concurrent use and
// holds no per-request state.
type Gateway struct {
	secret        Secret
	names         Names
	activationURL string
	client        *http.Client
	timeout       time.Duration
	logger        log.Logger
	observer      Observer
	metadata      string
}

func NewGateway(opts GatewayOptions) (*Gateway, error) {
	names := opts.Names.withDefaults()
	if err := names.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(opts.ActivationURL)
	if err != nil {
		return nil, xerrors.Wrap(err, "parse activation url")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, xerrors.Newf("activation url must be an absolute http(s) url, got %q", opts.ActivationURL)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultActivationTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	return &Gateway{
		secret:        opts.Secret,
		names:         names,
		activationURL: u.String(),
		client:        client,
		timeout:       timeout,
		logger:        logger,
		observer:      opts.Observer,
		metadata:      Draft.Encode(),
	}, nil
}

// Middleware passes every request through untouched unless its activation
// parameter matches the secret. On a match it activates a session and passes
// on a clone carrying the bypass and metadata cookies, or the untouched
// request if activation failed.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.secret.IsSet() || r.URL.RawQuery == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !g.secret.Matches(r.URL.Query().Get(g.names.ActivationParam)) {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, g.activate(r))
	})
}

func (g *Gateway) activate(r *http.Request) *http.Request {
	ctx := r.Context()
	L := log.FromContextOr(ctx, g.logger)

	start := time.Now()
	session, err := g.requestSession(ctx)
	outcome := outcomeOf(err)
	if g.observer != nil {
		g.observer.ObservePreviewActivation(outcome, time.Since(start))
	}

	if err != nil {
		L.Warn(ctx, "preview activation failed, serving published content",
			"outcome", outcome,
			"error", err.Error(),
		)
		return r
	}

	L.Debug(ctx, "preview session activated", "bypass_cookie_name", g.names.BypassCookie)
	return cookiejar.ProjectInto(r,
		[]*http.Cookie{session},
		cookiejar.Pair{Name: g.names.MetadataCookie, Value: g.metadata},
	)
}

// requestSession performs the single internal activation call and returns the
// bypass cookie it issued.
func (g *Gateway) requestSession(parent context.Context) (*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.activationURL, nil)
	if err != nil {
		return nil, xerrors.WithStack(fmt.Errorf("%w: %w", ErrActivationNetwork, err))
	}
	req.Header.Set(g.names.APIKeyHeader, string(g.secret))

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, xerrors.WithStack(fmt.Errorf("%w: %w", ErrActivationNetwork, err))
	}
	defer resp.Body.Close()
	// drain a little so the loopback connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	raw := resp.Header.Values("Set-Cookie")
	cookies := cookiejar.ParseSetCookie(raw...)
	if c, ok := cookiejar.Find(cookies, g.names.BypassCookie); ok && c.Value != "" {
		return c, nil
	}

	if len(cookies) < nonBlank(raw) {
		return nil, xerrors.WithStack(fmt.Errorf("%w (status %d)", ErrMalformedSetCookie, resp.StatusCode))
	}
	return nil, xerrors.WithStack(fmt.Errorf("%w (status %d)", ErrMissingSessionCookie, resp.StatusCode))
}

func nonBlank(values []string) int {
	n := 0
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

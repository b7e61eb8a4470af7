package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/draftsite/internal/cfg"
	"github.com/keithlinneman/draftsite/internal/content"
	"github.com/keithlinneman/draftsite/internal/contenthttp"
	"github.com/keithlinneman/draftsite/internal/draftmode"
	"github.com/keithlinneman/draftsite/internal/health"
	"github.com/keithlinneman/draftsite/internal/httpmw"
	"github.com/keithlinneman/draftsite/internal/httpserver"
	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/metrics"
	"github.com/keithlinneman/draftsite/internal/opshttp"
	"github.com/keithlinneman/draftsite/internal/otelx"
	"github.com/keithlinneman/draftsite/internal/preview"
	"github.com/keithlinneman/draftsite/internal/prof"
	"github.com/keithlinneman/draftsite/internal/ratelimit"
	"github.com/keithlinneman/draftsite/internal/sitehandler"
	"github.com/keithlinneman/draftsite/internal/version"
	"github.com/keithlinneman/draftsite/internal/webassets"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always runs.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := version.Get()
	conf, printed, err := loadConfig(flag.CommandLine, os.Args[1:], vi)
	switch {
	case err != nil:
		fmt.Fprintln(os.Stderr, err)
		return 2
	case printed:
		return 0
	}

	lg, err := newLogger(conf, vi)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)
	L.Info(ctx, "initializing application", startupFields(conf, vi)...)

	failed := func(err error, msg string) int {
		L.Error(ctx, err, msg)
		return 1
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(vi.AppName, "server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       vi.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags:          map[string]string{"component": "server", "version": vi.Version, "commit": vi.Commit},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(err == nil && conf.EnablePyroscope)
	defer stopProf()

	// the collector runs on localhost, so no TLS
	stopTracing, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   vi.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	sites := content.NewSites()
	seedContent(ctx, L, sites, m)

	var watchers errgroup.Group
	if conf.EnableContentUpdates {
		u, err := newContentUpdater(ctx, L, conf, sites, m)
		if err != nil {
			return failed(err, "failed to start content updates")
		}
		if err := u.start(ctx, &watchers); err != nil {
			return failed(err, "failed to start content updates")
		}
	} else {
		L.Info(ctx, "content updates disabled, serving seed content only")
	}

	var gate health.Gate
	readiness := health.All(&gate, health.CheckFunc(func(context.Context) error { return sites.ReadyErr() }))

	public, err := newPublicServer(ctx, L, conf, sites, m)
	if err != nil {
		return failed(err, "failed to build site server")
	}
	public.Health = health.OK
	public.Readiness = readiness
	stopPublic, err := httpserver.Start(ctx, *public)
	if err != nil {
		return failed(err, "failed to start site http listener")
	}

	// the admin listener refuses public source addresses in case a security
	// group or load balancer ever routes traffic to it
	stopOps, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.OK,
		Readiness:   readiness,
		Content:     sites,
	})
	if err != nil {
		_ = stopPublic(context.Background())
		return failed(err, "failed to start ops http listener")
	}

	if err := notifySystemd(); err != nil && !errors.Is(err, errNoNotifySocket) {
		// systemd kills the unit once its start timeout passes
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	stop()
	L.Info(context.Background(), "shutdown signal received")

	drain(L, &gate)
	shutdown(L,
		shutdownStep{"site http", stopPublic},
		shutdownStep{"ops http", stopOps},
		shutdownStep{"content watchers", func(context.Context) error { return watchers.Wait() }},
		shutdownStep{"otel", stopTracing},
	)
	L.Info(context.Background(), "shutdown complete")
	return 0
}

// newPublicServer assembles the public listener: draft sessions, the preview
// gateway and activation endpoint, and the site handler. Health checks are left for
// the caller.
func newPublicServer(ctx context.Context, L log.Logger, conf cfg.App, sites *content.Sites, m *metrics.ServerMetrics) (*httpserver.Options, error) {
	names := conf.Names()

	runtime, err := draftmode.New(draftmode.Options{
		Key:        []byte(conf.DraftSessionKey),
		CookieName: names.BypassCookie,
		TTL:        conf.DraftSessionTTL,
		Secure:     conf.DraftCookieSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("draft mode runtime: %w", err)
	}
	if conf.DraftSessionKey == "" {
		L.Warn(ctx, "draft-session-key not set, draft sessions will not survive restarts or span instances")
	}

	secret := preview.Secret(conf.PreviewSecret)
	if !secret.IsSet() {
		L.Info(ctx, "preview-secret not set, preview activation disabled")
	}
	endpoint, err := preview.NewActivationEndpoint(preview.EndpointOptions{
		Secret:  secret,
		Names:   names,
		Runtime: runtime,
		Logger:  L,
	})
	if err != nil {
		return nil, fmt.Errorf("activation endpoint: %w", err)
	}
	gateway, err := preview.NewGateway(preview.GatewayOptions{
		Secret:        secret,
		Names:         names,
		ActivationURL: conf.ActivationURL(),
		Timeout:       conf.PreviewActivationTimeout,
		Logger:        L,
		Observer:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("preview gateway: %w", err)
	}
	resolver := preview.NewResolver(runtime, names)

	site, err := sitehandler.New(sitehandler.Options{
		Logger:     L,
		Content:    sites,
		Versions:   resolver,
		Observer:   m,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		return nil, fmt.Errorf("site handler: %w", err)
	}
	api := contenthttp.NewAPI(sites, resolver, L)

	// the gateway's own activation call arrives from a loopback peer and is never throttled
	limiter := ratelimit.New(ctx, ratelimit.Options{
		PerSecond: conf.RateLimitRPS,
		Burst:     conf.RateLimitBurst,
		Exempt:    ratelimit.LoopbackPeer(preview.ActivationPath),
		OnDenied: func(ip string, first bool) {
			m.IncRateLimitDenied()
			if first {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}
		},
		OnFull: func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit table full, rejecting new clients until some are evicted")
		},
	})

	return &httpserver.Options{
		Logger:          L,
		Port:            conf.HTTPPort,
		UseRecoverMW:    true,
		OnPanic:         m.IncHttpPanic,
		ClientIPOpts:    httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		Security:        httpmw.SecurityOptions{FrameAncestors: conf.FrameAncestors()},
		RateLimitMW:     limiter.Middleware,
		MetricsMW:       m.Middleware,
		RedactQuery:     []string{names.ActivationParam},
		AccessLogFields: resolver.LogFields,
		PreviewMW:       gateway.Middleware,
		ResolveMW:       resolver.Middleware,
		ContentInfo:     contenthttp.Stamp(sites, resolver),
		APIRoutes: func(r chi.Router) {
			endpoint.RegisterRoutes(r)
			api.RegisterRoutes(r)
		},
		SiteHandler: site,
	}, nil
}

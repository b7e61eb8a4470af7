package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/keithlinneman/draftsite/internal/log"
	"github.com/keithlinneman/draftsite/internal/preview"
)

// EnvPrefix is prepended to upper-cased flag names: -http-port is DRAFTSITE_HTTP_PORT.
const EnvPrefix = "DRAFTSITE_"

type App struct {
	ConfigFile string

	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort       int
	AdminPort      int
	TrustedHops    int
	RateLimitRPS   float64
	RateLimitBurst int

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	EnableContentUpdates   bool
	ContentS3Bucket        string
	ContentS3Prefix        string
	ContentLiveSSMParam    string
	ContentWorkingSSMParam string
	ContentSigningKeyARN   string

	PreviewSecret            string
	PreviewActivationParam   string
	PreviewAPIKeyHeader      string
	PreviewBypassCookie      string
	PreviewMetadataCookie    string
	PreviewActivationURL     string
	PreviewActivationTimeout time.Duration
	PreviewFrameAncestors    string

	DraftSessionKey   string
	DraftSessionTTL   time.Duration
	DraftCookieSecure bool
}

// Register binds every App field to a flag on fs, with its default.
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.ConfigFile, "config", "", "TOML config file; flags and env override its values")
	registerLogging(fs, c)
	registerServer(fs, c)
	registerTelemetry(fs, c)
	registerContent(fs, c)
	registerPreview(fs, c)
}

func registerLogging(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "log as JSON, or logfmt when false")
	fs.StringVar(&c.LogLevel, "log-level", "info", "minimum log level: debug, info, warn or error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "level from which records carry a stack")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "log the file:line trail of wrapped errors")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "error trail depth, 1..64")
}

func registerServer(fs *flag.FlagSet, c *App) {
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "public listener port")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listener port (metrics, health, pprof)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "reverse proxies in front of the server whose X-Forwarded-For is trusted, 0..10")
	fs.Float64Var(&c.RateLimitRPS, "ratelimit-rps", 20, "sustained requests per second per client IP")
	fs.IntVar(&c.RateLimitBurst, "ratelimit-burst", 40, "request burst per client IP")
}

func registerTelemetry(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "serve pprof on the admin listener")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "export traces over OTLP gRPC")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP collector host:port")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio, 0..1")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "push continuous profiles to -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "Pyroscope server URL")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "Pyroscope tenant sent as X-Scope-OrgID")
}

func registerContent(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.EnableContentUpdates, "enable-content-updates", false, "load site bundles from S3 and watch SSM for new ones")
	fs.StringVar(&c.ContentS3Bucket, "content-s3-bucket", "", "bucket holding site bundles")
	fs.StringVar(&c.ContentS3Prefix, "content-s3-prefix", "draftsite/content/bundles", "key prefix; bundles sit under <prefix>/<live|working>/")
	fs.StringVar(&c.ContentLiveSSMParam, "content-live-ssm-param", "/draftsite/content/live/bundle-sha256", "SSM parameter naming the Live bundle hash")
	fs.StringVar(&c.ContentWorkingSSMParam, "content-working-ssm-param", "/draftsite/content/working/bundle-sha256", "SSM parameter naming the Working bundle hash; empty turns Working off")
	fs.StringVar(&c.ContentSigningKeyARN, "content-signing-key-arn", "", "KMS key that signs bundles; empty skips signature checks")
}

func registerPreview(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.PreviewSecret, "preview-secret", "", "shared preview secret; empty turns activation off")
	fs.StringVar(&c.PreviewActivationParam, "preview-activation-param", preview.DefaultActivationParam, "query parameter that carries the preview secret")
	fs.StringVar(&c.PreviewAPIKeyHeader, "preview-api-key-header", preview.DefaultAPIKeyHeader, "header that carries the secret to the activation endpoint")
	fs.StringVar(&c.PreviewBypassCookie, "preview-bypass-cookie", preview.DefaultBypassCookie, "name of the draft session cookie")
	fs.StringVar(&c.PreviewMetadataCookie, "preview-metadata-cookie", preview.DefaultMetadataCookie, "name of the preview metadata cookie")
	fs.StringVar(&c.PreviewActivationURL, "preview-activation-url", "", "activation endpoint URL, default http://127.0.0.1:<http-port>/api/draft-mode")
	fs.DurationVar(&c.PreviewActivationTimeout, "preview-activation-timeout", preview.DefaultActivationTimeout, "deadline for one activation call")
	fs.StringVar(&c.PreviewFrameAncestors, "preview-frame-ancestors", "", "comma separated origins that may frame the site")
	fs.StringVar(&c.DraftSessionKey, "draft-session-key", "", "HMAC key for draft session tokens; empty picks a random key per process")
	fs.DurationVar(&c.DraftSessionTTL, "draft-session-ttl", time.Hour, "lifetime of a draft session")
	fs.BoolVar(&c.DraftCookieSecure, "draft-cookie-secure", true, "set Secure on draft cookies")
}

// EnvKey is the variable FillFromEnv reads for flag name.
func EnvKey(prefix, name string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// FillFromEnv sets flags that were not passed on the command line from
// prefixed environment variables. A flag given on the command line wins and
// a value that does not parse is skipped; both are reported through logf,
// naming the variable but never its value.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	onCLI := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { onCLI[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		val, ok := os.LookupEnv(key)
		switch {
		case !ok:
		case onCLI[f.Name]:
			logf("flag -%s: cli value overrides env %s", f.Name, key)
		default:
			before := f.Value.String()
			if err := fs.Set(f.Name, val); err != nil {
				// put the default back without marking the flag as set
				_ = f.Value.Set(before)
				logf("flag -%s: ignoring invalid env %s: %v", f.Name, key, err)
			}
		}
	})
}

// Names returns the preview wire names from config.
func (c App) Names() preview.Names {
	return preview.Names{
		ActivationParam: c.PreviewActivationParam,
		APIKeyHeader:    c.PreviewAPIKeyHeader,
		BypassCookie:    c.PreviewBypassCookie,
		MetadataCookie:  c.PreviewMetadataCookie,
	}
}

// ActivationURL is the configured URL or the loopback default for HTTPPort.
func (c App) ActivationURL() string {
	if c.PreviewActivationURL != "" {
		return c.PreviewActivationURL
	}
	return fmt.Sprintf("http://127.0.0.1:%d%s", c.HTTPPort, preview.ActivationPath)
}

func (c App) FrameAncestors() []string {
	var out []string
	for _, a := range strings.Split(c.PreviewFrameAncestors, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// problems collects every invalid setting so one run reports them all.
type problems []error

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

func (p *problems) port(name string, v int) {
	p.check(v >= 1 && v <= 65535, "invalid %s %d (must be 1..65535)", name, v)
}

func (p *problems) level(name, v string) {
	if _, err := log.ParseLevel(v); err != nil {
		p.addf("invalid %s %q: %w", name, v, err)
	}
}

func (p *problems) positive(name string, d time.Duration) {
	p.check(d > 0, "invalid %s %s (must be > 0)", name, d)
}

// Validate reports every setting that is out of range or missing a
// dependency, joined into one error.
func Validate(c App) error {
	var p problems

	p.port("HTTP_PORT", c.HTTPPort)
	p.port("ADMIN_PORT", c.AdminPort)
	p.check(c.AdminPort != c.HTTPPort, "ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)
	p.check(c.TrustedHops >= 0 && c.TrustedHops <= 10, "invalid TRUSTED_HOPS %d (must be 0..10)", c.TrustedHops)
	p.check(c.RateLimitRPS > 0, "invalid RATELIMIT_RPS %.2f (must be > 0)", c.RateLimitRPS)
	p.check(c.RateLimitBurst >= 1, "invalid RATELIMIT_BURST %d (must be >= 1)", c.RateLimitBurst)

	p.level("LOG_LEVEL", c.LogLevel)
	if c.StacktraceLevel != "" {
		p.level("STACKTRACE_LEVEL", c.StacktraceLevel)
	}
	if c.IncludeErrorLinks {
		p.check(c.MaxErrorLinks >= 1 && c.MaxErrorLinks <= 64, "MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)
	}

	p.check(c.TraceSample >= 0 && c.TraceSample <= 1, "invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	if c.EnableTracing {
		// the gRPC exporter takes host:port without a scheme
		if c.OTLPEndpoint == "" {
			p.addf("OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			p.addf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			p.addf("PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		} else {
			p.check(absoluteURL(c.PyroServer), "PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		}
		p.check(c.PyroTenantID != "", "PYRO_TENANT required when ENABLE_PYROSCOPE=true")
	}

	if c.EnableContentUpdates {
		p.check(c.ContentS3Bucket != "", "CONTENT_S3_BUCKET is required when ENABLE_CONTENT_UPDATES=true")
		p.check(c.ContentLiveSSMParam != "", "CONTENT_LIVE_SSM_PARAM is required when ENABLE_CONTENT_UPDATES=true")
		p.check(c.ContentWorkingSSMParam == "" || c.ContentWorkingSSMParam != c.ContentLiveSSMParam,
			"CONTENT_WORKING_SSM_PARAM must differ from CONTENT_LIVE_SSM_PARAM")
	}

	if err := c.Names().Validate(); err != nil {
		p.addf("invalid preview names: %w", err)
	}
	if c.PreviewActivationURL != "" {
		p.check(absoluteURL(c.PreviewActivationURL, "http", "https"),
			"PREVIEW_ACTIVATION_URL must be an absolute http(s) URL (got %q)", c.PreviewActivationURL)
	}
	p.positive("PREVIEW_ACTIVATION_TIMEOUT", c.PreviewActivationTimeout)
	p.positive("DRAFT_SESSION_TTL", c.DraftSessionTTL)

	return errors.Join(p...)
}

// absoluteURL reports whether raw has a host and, when schemes are given,
// one of them.
func absoluteURL(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return len(schemes) == 0 || slices.Contains(schemes, u.Scheme)
}

// Package metrics owns the Prometheus registry for the public server and the
// ops listener. Labels are bounded: chi route patterns, site version labels
// and fixed outcome strings, never raw paths.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keithlinneman/draftsite/internal/version"
)

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	sizeBuckets    = prometheus.ExponentialBuckets(256, 4, 10)
	loadBuckets    = []float64{0.5, 1, 2.5, 5, 10, 30, 60}
)

type ServerMetrics struct {
	reg     *prometheus.Registry
	handler http.Handler

	http    httpMetrics
	content contentMetrics
	watcher watcherMetrics
	preview previewMetrics

	buildInfo       *prometheus.GaugeVec
	profilingActive prometheus.Gauge
}

type httpMetrics struct {
	inflight  prometheus.Gauge
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	size      *prometheus.HistogramVec
	panics    prometheus.Counter
	limited   prometheus.Counter
	limitFull prometheus.Counter
}

type contentMetrics struct {
	source   *prometheus.GaugeVec
	bundle   *prometheus.GaugeVec
	loadedAt *prometheus.GaugeVec
	served   *prometheus.CounterVec
}

type watcherMetrics struct {
	polls       *prometheus.CounterVec
	swaps       *prometheus.CounterVec
	errors      *prometheus.CounterVec
	load        *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	stale       *prometheus.GaugeVec
}

type previewMetrics struct {
	activations *prometheus.CounterVec
	duration    prometheus.Histogram
}

// New builds a registry with the Go and process collectors plus every
// server metric. Each call is independent, so tests can run in parallel.
func New() *ServerMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	site := []string{"site"}
	route := []string{"method", "route"}

	m := &ServerMetrics{
		reg: reg,
		http: httpMetrics{
			inflight: f.NewGauge(prometheus.GaugeOpts{Name: "http_inflight_requests", Help: "Requests being served."}),
			requests: f.NewCounterVec(prometheus.CounterOpts{Name: "http_requests_total", Help: "Requests by method, route and status."},
				[]string{"method", "route", "status"}),
			errors: f.NewCounterVec(prometheus.CounterOpts{Name: "http_errors_total", Help: "5xx responses by method and route."}, route),
			duration: f.NewHistogramVec(prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "Request latency.",
				Buckets: latencyBuckets}, route),
			size: f.NewHistogramVec(prometheus.HistogramOpts{Name: "http_response_size_bytes", Help: "Response body size.",
				Buckets: sizeBuckets}, route),
			panics:    f.NewCounter(prometheus.CounterOpts{Name: "http_panic_total", Help: "Recovered handler panics."}),
			limited:   f.NewCounter(prometheus.CounterOpts{Name: "http_requests_rate_limited_total", Help: "Requests rejected by the rate limiter."}),
			limitFull: f.NewCounter(prometheus.CounterOpts{Name: "http_requests_rate_limited_capacity_total", Help: "Times the limiter's visitor table was full."}),
		},
		content: contentMetrics{
			source: f.NewGaugeVec(prometheus.GaugeOpts{Name: "content_source_info", Help: "Where each site version's content came from (always 1)."},
				[]string{"site", "source"}),
			bundle: f.NewGaugeVec(prometheus.GaugeOpts{Name: "content_bundle_info", Help: "Active bundle digest per site version (always 1)."},
				[]string{"site", "sha256"}),
			loadedAt: f.NewGaugeVec(prometheus.GaugeOpts{Name: "content_loaded_timestamp_seconds", Help: "When the active bundle was loaded."}, site),
			served: f.NewCounterVec(prometheus.CounterOpts{Name: "site_requests_total", Help: "Pages served by the site version they came from."},
				[]string{"site_version"}),
		},
		watcher: watcherMetrics{
			polls:  f.NewCounterVec(prometheus.CounterOpts{Name: "content_watcher_polls_total", Help: "Watcher poll cycles."}, site),
			swaps:  f.NewCounterVec(prometheus.CounterOpts{Name: "content_watcher_swaps_total", Help: "Bundles swapped in."}, site),
			errors: f.NewCounterVec(prometheus.CounterOpts{Name: "content_watcher_errors_total", Help: "Watcher failures by stage."}, []string{"site", "type"}),
			load: f.NewHistogramVec(prometheus.HistogramOpts{Name: "content_bundle_load_duration_seconds", Help: "Download, verify and extract time.",
				Buckets: loadBuckets}, site),
			lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{Name: "content_watcher_last_success_timestamp_seconds", Help: "Last successful SSM poll."}, site),
			stale:       f.NewGaugeVec(prometheus.GaugeOpts{Name: "content_watcher_stale", Help: "1 while the watcher has not succeeded recently."}, site),
		},
		preview: previewMetrics{
			activations: f.NewCounterVec(prometheus.CounterOpts{Name: "preview_activations_total", Help: "Preview activation attempts by outcome."},
				[]string{"outcome"}),
			duration: f.NewHistogram(prometheus.HistogramOpts{Name: "preview_activation_duration_seconds", Help: "Time spent calling the activation endpoint.",
				Buckets: latencyBuckets[:10]}),
		},
		buildInfo: f.NewGaugeVec(prometheus.GaugeOpts{Name: "build_info", Help: "Build metadata (always 1)."},
			[]string{"app", "component", "version", "commit", "commit_date", "build_id", "build_date", "vcs_dirty", "go_version"}),
		profilingActive: f.NewGauge(prometheus.GaugeOpts{Name: "profiling_active", Help: "1 while continuous profiling runs."}),
	}
	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true, Registry: reg})
	return m
}

func (m *ServerMetrics) Handler() http.Handler { return m.handler }

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}

// SetBuildInfoFromVersion is called once at startup.
func (m *ServerMetrics) SetBuildInfoFromVersion(app, component string, vi version.Info) {
	dirty := "unknown"
	if vi.VCSDirty != nil {
		dirty = strconv.FormatBool(*vi.VCSDirty)
	}
	m.buildInfo.WithLabelValues(app, component, vi.Version, vi.Commit, vi.CommitDate,
		vi.BuildId, vi.BuildDate, dirty, vi.GoVersion).Set(1)
}

func (m *ServerMetrics) SetProfilingActive(active bool) { boolGauge(m.profilingActive, active) }

func (m *ServerMetrics) IncHttpPanic()         { m.http.panics.Inc() }
func (m *ServerMetrics) IncRateLimitDenied()   { m.http.limited.Inc() }
func (m *ServerMetrics) IncRateLimitCapacity() { m.http.limitFull.Inc() }

// SetContentSource replaces the site's previous source series.
func (m *ServerMetrics) SetContentSource(site, source string) {
	m.content.source.DeletePartialMatch(prometheus.Labels{"site": site})
	m.content.source.WithLabelValues(site, source).Set(1)
}

// SetContentBundle replaces the site's previous bundle series.
func (m *ServerMetrics) SetContentBundle(site, sha256 string) {
	m.content.bundle.DeletePartialMatch(prometheus.Labels{"site": site})
	m.content.bundle.WithLabelValues(site, sha256).Set(1)
}

func (m *ServerMetrics) SetContentLoadedTimestamp(site string, t time.Time) {
	m.content.loadedAt.WithLabelValues(site).Set(float64(t.Unix()))
}

// ObserveSiteRequest counts a page served from the given site version.
func (m *ServerMetrics) ObserveSiteRequest(site string) {
	m.content.served.WithLabelValues(site).Inc()
}

func (m *ServerMetrics) ObservePreviewActivation(outcome string, d time.Duration) {
	m.preview.activations.WithLabelValues(outcome).Inc()
	m.preview.duration.Observe(d.Seconds())
}

func (m *ServerMetrics) IncWatcherPolls(site string) { m.watcher.polls.WithLabelValues(site).Inc() }
func (m *ServerMetrics) IncWatcherSwaps(site string) { m.watcher.swaps.WithLabelValues(site).Inc() }

func (m *ServerMetrics) IncWatcherError(site, stage string) {
	m.watcher.errors.WithLabelValues(site, stage).Inc()
}

func (m *ServerMetrics) ObserveBundleLoadDuration(site string, seconds float64) {
	m.watcher.load.WithLabelValues(site).Observe(seconds)
}

func (m *ServerMetrics) SetWatcherLastSuccess(site string, unixSeconds float64) {
	m.watcher.lastSuccess.WithLabelValues(site).Set(unixSeconds)
}

func (m *ServerMetrics) SetWatcherStale(site string, stale bool) {
	boolGauge(m.watcher.stale.WithLabelValues(site), stale)
}

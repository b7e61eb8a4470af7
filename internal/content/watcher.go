package content

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/keithlinneman/draftsite/internal/cryptoutil"
	"github.com/keithlinneman/draftsite/internal/log"
)

const (
	DefaultPollInterval   = 30 * time.Second
	DefaultStaleThreshold = 30 * time.Minute
	maxBackoff            = 5 * time.Minute
)

// outcome of one poll. The failure values double as the metric error type.
type outcome string

const (
	unchanged    outcome = "unchanged"
	swapped      outcome = "swapped"
	ssmFailed    outcome = "ssm"
	loadFailed   outcome = "load"
	invalidFound outcome = "validation"
)

// BundleFetcher is what the Watcher needs from a Loader.
type BundleFetcher interface {
	PublishedHash(ctx context.Context) (string, error)
	LoadHash(ctx context.Context, hash string) (*Snapshot, error)
}

// WatcherMetrics is implemented by metrics.ServerMetrics. site is the
// site version label.
type WatcherMetrics interface {
	IncWatcherPolls(site string)
	IncWatcherSwaps(site string)
	IncWatcherError(site, errType string)
	ObserveBundleLoadDuration(site string, seconds float64)
	SetWatcherLastSuccess(site string, unixSeconds float64)
	SetWatcherStale(site string, stale bool)
}

type nopWatcherMetrics struct{}

func (nopWatcherMetrics) IncWatcherPolls(string)                    {}
func (nopWatcherMetrics) IncWatcherSwaps(string)                    {}
func (nopWatcherMetrics) IncWatcherError(string, string)            {}
func (nopWatcherMetrics) ObserveBundleLoadDuration(string, float64) {}
func (nopWatcherMetrics) SetWatcherLastSuccess(string, float64)     {}
func (nopWatcherMetrics) SetWatcherStale(string, bool)              {}

// WatcherOptions configures the watcher for one site version. The site is
// taken from Manager.
type WatcherOptions struct {
	Logger       log.Logger
	Loader       BundleFetcher
	Manager      *Manager
	PollInterval time.Duration

	// Validation gates every new bundle. nil means DefaultValidationOptions.
	Validation *ValidationOptions

	// OnSwap runs on the poll goroutine after each swap. A panic in it is
	// logged and swallowed.
	OnSwap func(hash, version string)

	Metrics WatcherMetrics

	// StaleThreshold is how long SSM may keep failing before the content is
	// reported stale.
	StaleThreshold time.Duration
}

// Watcher polls SSM for the bundle hash of one site version and swaps in
// each new bundle that loads and validates. A failing bundle leaves the
// current one in place.
type Watcher struct {
	opts    WatcherOptions
	site    string
	logger  log.Logger
	metrics WatcherMetrics
	backoff *backoff.ExponentialBackOff

	current string // hash being served

	errStreak   int
	lastSuccess time.Time
	stale       bool

	polls, swaps int64
}

func NewWatcher(opts WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = DefaultStaleThreshold
	}
	if opts.Validation == nil {
		v := DefaultValidationOptions()
		opts.Validation = &v
	}
	if opts.Metrics == nil {
		opts.Metrics = nopWatcherMetrics{}
	}

	site := opts.Manager.Site().Label()
	w := &Watcher{
		opts:        opts,
		site:        site,
		logger:      opts.Logger.With("site", site),
		metrics:     opts.Metrics,
		backoff:     newBackoff(opts.PollInterval),
		lastSuccess: time.Now(),
	}
	// whatever was loaded at startup is already current
	if snap, ok := opts.Manager.Get(); ok {
		w.current = snap.Meta.Hash
	}
	return w
}

// newBackoff doubles from twice the poll interval up to maxBackoff.
func newBackoff(interval time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * interval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxBackoff
	b.Reset()
	return b
}

// Run polls until ctx is done and returns ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info(ctx, "content watcher starting",
		"poll_interval", w.opts.PollInterval.String(), "current_hash", shortHash(w.current))

	timer := time.NewTimer(w.opts.PollInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "content watcher stopping", "reason", ctx.Err(), "polls", w.polls, "swaps", w.swaps)
			return ctx.Err()
		case <-timer.C:
		}
		timer.Reset(w.after(ctx, w.checkOnce(ctx)))
	}
}

// after updates the error streak and staleness for o and returns the delay
// until the next poll.
func (w *Watcher) after(ctx context.Context, o outcome) time.Duration {
	if o != ssmFailed {
		if w.errStreak > 0 {
			w.logger.Info(ctx, "content watcher recovered", "had_consecutive_errors", w.errStreak)
			w.errStreak = 0
			w.backoff.Reset()
		}
		if w.stale {
			w.stale = false
			w.metrics.SetWatcherStale(w.site, false)
			w.logger.Info(ctx, "content watcher no longer stale")
		}
		return w.opts.PollInterval
	}

	w.errStreak++
	next := w.backoff.NextBackOff()
	w.logger.Warn(ctx, "content watcher backing off", "consecutive_errors", w.errStreak, "next_poll_in", next.String())

	if since := time.Since(w.lastSuccess); !w.stale && since > w.opts.StaleThreshold {
		w.stale = true
		w.metrics.SetWatcherStale(w.site, true)
		w.logger.Error(ctx, fmt.Errorf("last successful SSM poll was %s ago", since.Truncate(time.Second)),
			"content watcher cannot confirm content is current")
	}
	return next
}

// checkOnce runs one poll, compare and swap cycle.
func (w *Watcher) checkOnce(ctx context.Context) outcome {
	w.polls++
	w.metrics.IncWatcherPolls(w.site)

	hash, err := w.opts.Loader.PublishedHash(ctx)
	if err != nil {
		return w.fail(ctx, ssmFailed, err, "content watcher SSM poll failed")
	}
	w.lastSuccess = time.Now()
	w.metrics.SetWatcherLastSuccess(w.site, float64(w.lastSuccess.Unix()))

	if cryptoutil.HashEqual(hash, w.current) {
		return unchanged
	}
	w.logger.Info(ctx, "content watcher found a new bundle", "old_hash", shortHash(w.current), "new_hash", shortHash(hash))

	start := time.Now()
	snap, err := w.opts.Loader.LoadHash(ctx, hash)
	w.metrics.ObserveBundleLoadDuration(w.site, time.Since(start).Seconds())
	if err != nil {
		return w.fail(ctx, loadFailed, err, "content watcher could not load bundle", "hash", shortHash(hash))
	}
	if err := ValidateSnapshot(snap, *w.opts.Validation); err != nil {
		return w.fail(ctx, invalidFound, err, "content watcher rejected bundle, keeping current content",
			"rejected_hash", shortHash(hash), "current_hash", shortHash(w.current))
	}

	old := w.current
	w.opts.Manager.Set(*snap)
	w.current = hash
	w.swaps++
	w.metrics.IncWatcherSwaps(w.site)

	version := w.opts.Manager.ContentVersion()
	w.logger.Info(ctx, "content watcher swapped bundle",
		"old_hash", shortHash(old), "new_hash", shortHash(hash), "version", version, "total_swaps", w.swaps)
	w.notify(ctx, hash, version)
	return swapped
}

func (w *Watcher) fail(ctx context.Context, o outcome, err error, msg string, kv ...any) outcome {
	w.logger.Error(ctx, err, msg, kv...)
	w.metrics.IncWatcherError(w.site, string(o))
	return o
}

func (w *Watcher) notify(ctx context.Context, hash, version string) {
	if w.opts.OnSwap == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, fmt.Errorf("OnSwap panic: %v", r), "content watcher OnSwap callback panicked", "hash", shortHash(hash))
		}
	}()
	w.opts.OnSwap(hash, version)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

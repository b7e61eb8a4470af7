package ratelimit

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/draftsite/internal/httpmw"
)

// Defaults applied to zero Options fields.
const (
	DefaultPerSecond   = 10
	DefaultBurst       = 30
	DefaultTTL         = 5 * time.Minute
	DefaultMaxVisitors = 100_000
)

type Options struct {
	// PerSecond refills the bucket; Burst is its size. 10/30 allows 30
	// requests at once, then 10 per second.
	PerSecond float64
	Burst     int

	// TTL is how long an idle client stays tracked.
	TTL time.Duration

	// MaxVisitors bounds the tracked clients. Unknown clients are rejected
	// while the table is full. Negative disables the bound.
	MaxVisitors int

	// Exempt requests bypass the limiter, e.g. [LoopbackPeer] for the
	// preview gateway's call to the site's own activation endpoint.
	Exempt func(r *http.Request) bool

	// OnDenied runs on every rejected request. first is true only for the
	// first rejection since the client started being tracked.
	OnDenied func(ip string, first bool)

	// OnFull runs when the table fills up, once per fill.
	OnFull func()
}

func (o Options) withDefaults() Options {
	if o.PerSecond <= 0 {
		o.PerSecond = DefaultPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.MaxVisitors == 0 {
		o.MaxVisitors = DefaultMaxVisitors
	}
	return o
}

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
	denied   bool
}

// IPLimiter is a per-client token bucket table. Idle clients are evicted in
// the background until the context given to New is done.
type IPLimiter struct {
	opts Options

	mu       sync.Mutex
	visitors map[string]*visitor
	full     bool
}

func New(ctx context.Context, opts Options) *IPLimiter {
	l := &IPLimiter{
		opts:     opts.withDefaults(),
		visitors: make(map[string]*visitor),
	}
	go l.evictLoop(ctx)
	return l
}

// IsLoopback reports whether ip is a loopback address.
func IsLoopback(ip string) bool {
	a, err := netip.ParseAddr(ip)
	return err == nil && a.Unmap().IsLoopback()
}

// LoopbackPeer exempts requests whose TCP peer is loopback and whose path is
// one of paths. It reads r.RemoteAddr rather than the resolved client IP, so
// forwarded headers relayed by a same-host proxy cannot claim it.
func LoopbackPeer(paths ...string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if !slices.Contains(paths, r.URL.Path) {
			return false
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return IsLoopback(host)
	}
}

type decision struct {
	allowed   bool
	first     bool
	fullStart bool
}

func (l *IPLimiter) decide(ip string, now time.Time) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		if l.opts.MaxVisitors > 0 && len(l.visitors) >= l.opts.MaxVisitors {
			d := decision{fullStart: !l.full}
			l.full = true
			return d
		}
		v = &visitor{bucket: rate.NewLimiter(rate.Limit(l.opts.PerSecond), l.opts.Burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	if v.bucket.AllowN(now, 1) {
		return decision{allowed: true}
	}
	d := decision{first: !v.denied}
	v.denied = true
	return d
}

// Allow reports whether a request from ip may proceed. Hooks run after the
// table lock is released.
func (l *IPLimiter) Allow(ip string) bool {
	d := l.decide(ip, time.Now())
	if d.fullStart && l.opts.OnFull != nil {
		l.opts.OnFull()
	}
	if !d.allowed && l.opts.OnDenied != nil {
		l.opts.OnDenied(ip, d.first)
	}
	return d.allowed
}

// Len is the number of tracked clients.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *IPLimiter) evictLoop(ctx context.Context) {
	t := time.NewTicker(l.opts.TTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			l.evict(now)
		}
	}
}

// evict drops clients idle for longer than TTL and reopens a full table.
func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.opts.TTL {
			delete(l.visitors, ip)
		}
	}
	if l.opts.MaxVisitors <= 0 || len(l.visitors) < l.opts.MaxVisitors {
		l.full = false
	}
}

// Middleware answers 429 once a client's bucket is empty. It keys on the
// address httpmw.ClientIPWithOptions resolved and must run inside it.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := httpmw.ClientIPFromContext(r.Context())
		if l.opts.Exempt != nil && l.opts.Exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(ip) {
			// no budget or refill details in the response
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

package httpmw

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type clientIPKey struct{}

// ClientIPOptions configures how the client address is resolved.
type ClientIPOptions struct {
	// TrustedHops is the number of proxies in front of the server. With 0
	// X-Forwarded-For is ignored; with N the Nth entry from the right is used.
	TrustedHops int
}

// ClientIPWithOptions stores the resolved client address in the request
// context. Forwarded headers are deleted unless they came through a private
// peer and TrustedHops allows them.
func ClientIPWithOptions(opts ClientIPOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolveClient(r, opts.TrustedHops)
			next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
		})
	}
}

const unknownAddr = "0.0.0.0"

func resolveClient(r *http.Request, hops int) string {
	if r.RemoteAddr == "" {
		return unknownAddr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return unknownAddr
	}

	entries := forwardedFor(r)
	idx := len(entries) - hops
	// too few entries for the configured hops fails closed
	if !peer.Unmap().IsPrivate() || hops <= 0 || (len(entries) > 0 && idx < 0) {
		r.Header.Del("X-Forwarded-For")
		r.Header.Del("X-Forwarded-Proto")
		return host
	}
	if idx >= 0 && idx < len(entries) {
		if a, err := netip.ParseAddr(entries[idx]); err == nil {
			return a.String()
		}
	}
	return host
}

func forwardedFor(r *http.Request) []string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return nil
	}
	parts := strings.Split(xff, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// WithClientIP stores ip on ctx. An empty ip leaves ctx unchanged.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

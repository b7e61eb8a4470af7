package opshttp

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/keithlinneman/draftsite/internal/log"
)

// requireNonPublicNetwork rejects peers outside loopback, private and
// link-local ranges. The ops port is never meant to face the internet.
func requireNonPublicNetwork(L log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr, ok := peerAddr(r.RemoteAddr)
		if !ok {
			L.Warn(r.Context(), "ops request with unparseable remote addr")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if !addr.IsLoopback() && !addr.IsPrivate() && !addr.IsLinkLocalUnicast() {
			L.Warn(r.Context(), "rejected ops request from public address", "network.peer.address", addr.String())
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// peerAddr parses host:port, unmapping IPv4-in-IPv6 so ::ffff:8.8.8.8 is
// judged as 8.8.8.8.
func peerAddr(remote string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

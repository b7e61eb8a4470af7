// Package ratelimit is an in-memory per-client token bucket for the public
// listener.
//
// One log line per offender and a counter per denial give visibility into
// who is flooding the process. It does nothing against distributed floods,
// which upstream filtering handles.
//
// The preview gateway calls the site's own activation endpoint over
// loopback. Only that path from a loopback peer is exempt. Visitors relayed
// by a proxy on the same host share its loopback peer address and stay
// limited everywhere else.
package ratelimit

// Package httpmw provides HTTP middleware for the public-facing server.
//
// httpserver.NewHandler composes them with [Compose], outermost first:
// security headers, recover, request ID, client IP, rate limiting, OTel
// tracing, trace headers, metrics, request logger, preview gateway, preview
// resolution, content headers, then the chi router.
//
// User-supplied data (query params, user-agent, headers) is kept out of log
// fields to prevent PII leaks and log injection. The query string only reaches
// trace spans, with sensitive parameters masked.
package httpmw

package log

import (
	"log/slog"
	"strings"
)

const redacted = "REDACTED"

var sensitiveKeyParts = []string{"secret", "api_key", "api-key", "apikey", "token", "cookie", "password", "authorization"}

// Keys ending in _name carry an identifier, never the value itself.
func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	if strings.HasSuffix(k, "_name") {
		return false
	}
	for _, p := range sensitiveKeyParts {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// redactAttr is a slog ReplaceAttr hook that masks values under sensitive keys.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

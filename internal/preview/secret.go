package preview

import (
	"crypto/subtle"
	"log/slog"
)

// Secret is the shared preview secret. It never appears in logs or fmt output.
type Secret string

// Matches reports whether candidate equals the secret in constant time.
// An empty secret matches nothing.
func (s Secret) Matches(candidate string) bool {
	if s == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s), []byte(candidate)) == 1
}

func (s Secret) IsSet() bool { return s != "" }

func (Secret) LogValue() slog.Value { return slog.StringValue("REDACTED") }

func (Secret) String() string { return "REDACTED" }

func (s Secret) GoString() string { return `preview.Secret("REDACTED")` }

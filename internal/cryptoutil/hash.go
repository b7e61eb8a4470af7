package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashEqual compares two hex digests in constant time. Digests are always
// compared with it, never with ==.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA256Hex is the lowercase hex SHA-256 of data, the form bundle hashes are
// published in.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

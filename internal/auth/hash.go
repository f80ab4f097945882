package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashString returns a hex-encoded SHA-256 hash for code storage.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// matchesHash compares a plaintext code against a stored HashString value.
func matchesHash(stored, plain string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(HashString(plain))) == 1
}

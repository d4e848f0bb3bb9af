package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Verify reports whether s hashes to expectedHash, in constant time.
func Verify(s, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(s)), []byte(expectedHash)) == 1
}

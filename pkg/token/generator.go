package token

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultLength is the number of random bytes in a generated secret.
const DefaultLength = 32

// Generate returns DefaultLength random bytes, base64 RawURL encoded.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength returns n random bytes, base64 RawURL encoded.
func GenerateWithLength(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

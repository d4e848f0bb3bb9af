// Package token generates opaque random secrets and hashes them for storage.
//
// Secrets are 32 random bytes from crypto/rand, base64 RawURL encoded and
// optionally prefixed. Stores keep only the hex SHA-256 of a secret; lookups
// hash the presented value and compare in constant time.
package token

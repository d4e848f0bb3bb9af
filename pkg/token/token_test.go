package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	s, err := Generate()
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(s)
	require.NoError(t, err)
	assert.Len(t, decoded, DefaultLength)
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		s, err := Generate()
		require.NoError(t, err)
		_, dup := seen[s]
		require.False(t, dup, "duplicate secret %s", s)
		seen[s] = struct{}{}
	}
}

func TestGenerateWithLength(t *testing.T) {
	for _, n := range []int{8, 16, 64} {
		s, err := GenerateWithLength(n)
		require.NoError(t, err)
		decoded, err := base64.RawURLEncoding.DecodeString(s)
		require.NoError(t, err)
		assert.Len(t, decoded, n)
	}
}

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash("abc"))
	assert.Len(t, Hash(""), 64)
}

func TestVerify(t *testing.T) {
	h := Hash("ek-secret")
	assert.True(t, Verify("ek-secret", h))
	assert.False(t, Verify("ek-secreT", h))
	assert.False(t, Verify("ek-secret", h[:10]))
}

package domain

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ekodi-ai/gatekeeper/pkg/token"
)

const (
	// APIKeyPrefix starts every raw API key.
	APIKeyPrefix = "ek-"

	// apiKeyDisplayLen is how much of the raw key is kept for display.
	apiKeyDisplayLen = 12
)

// APIKey is a programmatic credential. Only the hash of the raw key is stored.
type APIKey struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	KeyHash    string    `json:"-"`
	KeyPrefix  string    `json:"key_prefix"`
	Active     bool      `json:"active"`
	UsageCount int64     `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAPIKey mints a key for userID and returns the record and the raw secret.
// The raw secret is shown once and never persisted.
func NewAPIKey(userID, name string, now time.Time) (*APIKey, string, error) {
	body, err := token.Generate()
	if err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	raw := APIKeyPrefix + body
	return &APIKey{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      name,
		KeyHash:   token.Hash(raw),
		KeyPrefix: raw[:apiKeyDisplayLen] + "...",
		Active:    true,
		CreatedAt: now,
	}, raw, nil
}

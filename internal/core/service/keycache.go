package service

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
)

// DefaultKeyCacheSize bounds the cache when no capacity is given.
const DefaultKeyCacheSize = 10000

// APIKeyCache is an LRU cache with TTL for API key records, keyed by key hash.
// Expiry is checked against the injected clock so tests can step time.
type APIKeyCache struct {
	entries *lru.Cache[string, keyCacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

type keyCacheEntry struct {
	key       *domain.APIKey
	expiresAt time.Time
}

// NewAPIKeyCache creates a cache holding at most capacity entries for ttl.
func NewAPIKeyCache(capacity int, ttl time.Duration, clock func() time.Time) *APIKeyCache {
	if capacity <= 0 {
		capacity = DefaultKeyCacheSize
	}
	if clock == nil {
		clock = time.Now
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, keyCacheEntry](capacity)
	return &APIKeyCache{entries: entries, ttl: ttl, now: clock}
}

// Get returns a cached key or nil. Expired entries are dropped on access.
func (c *APIKeyCache) Get(hash string) *domain.APIKey {
	entry, ok := c.entries.Get(hash)
	if !ok {
		return nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.entries.Remove(hash)
		return nil
	}
	return entry.key
}

// Set stores key under hash, evicting the least recently used entry when full.
func (c *APIKeyCache) Set(hash string, key *domain.APIKey) {
	c.entries.Add(hash, keyCacheEntry{key: key, expiresAt: c.now().Add(c.ttl)})
}

// Delete removes hash from the cache.
func (c *APIKeyCache) Delete(hash string) {
	c.entries.Remove(hash)
}

// Len returns the number of cached entries, expired ones included until
// they are next read.
func (c *APIKeyCache) Len() int {
	return c.entries.Len()
}

package cache

import (
	"encoding/json"
	"time"
)

// CacheEntry represents a cached VK API response.
type CacheEntry struct {
	// Data is the "response" member of the API envelope
	Data json.RawMessage `json:"data"`

	// Expires is when the cache entry becomes stale
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry for data that expires after ttl.
func NewEntry(data json.RawMessage, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Data:     append(json.RawMessage(nil), data...),
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// purgeBatch is the SCAN page size used by Purge.
const purgeBatch = 100

// Manager stores VK responses in Redis.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: log.With().Str("component", "vk-cache").Logger(),
	}
}

// Get returns the entry stored under key.
// Missing and stale entries are reported as ErrCacheMiss.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	raw, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key.Method, err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	// Redis expiry and Expires can disagree by clock skew between hosts
	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores entry under key until entry.Expires. Already expired entries are skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key.Method, err)
	}

	CacheSize.WithLabelValues("redis").Add(float64(len(raw)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key.Method, err)
	}
	return nil
}

// Purge removes every entry cached for method under any token, or every VK entry
// when method is empty. It returns the number of keys deleted.
func (m *Manager) Purge(ctx context.Context, method string) (int, error) {
	pattern := KeyPattern(method)

	deleted := 0
	var cursor uint64
	for {
		keys, next, err := m.redis.Scan(ctx, cursor, pattern, purgeBatch).Result()
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
		}

		owned := keys[:0]
		for _, k := range keys {
			if KeyBelongsTo(k, method) {
				owned = append(owned, k)
			}
		}

		if len(owned) > 0 {
			n, err := m.redis.Del(ctx, owned...).Result()
			if err != nil {
				CacheErrors.WithLabelValues("purge").Inc()
				return deleted, fmt.Errorf("redis del: %w", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	m.logger.Info().
		Str("pattern", pattern).
		Int("deleted", deleted).
		Msg("Cache purged")

	return deleted, nil
}

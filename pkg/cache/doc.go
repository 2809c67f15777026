// Package cache provides VK API response caching with a Redis backend.
//
// The VK API sends no caching headers, so entries live for a fixed TTL chosen
// by the client. Keys include a scope derived from the access token: two users
// calling the same method with the same parameters never share an entry.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.CacheKey{
//		Method: "wall.get",
//		Params: url.Values{"owner_id": []string{"-1"}},
//		Scope:  cache.ScopeForToken(token),
//	}
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - call VK, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(data, time.Minute))
//	}
//
// # Invalidation
//
// Entries expire on their own. To drop them early, for example after posting to a wall:
//
//	deleted, err := manager.Purge(ctx, "wall.get") // every token, every page
//
// # Metrics
//
// The cache manager exports Prometheus metrics:
//
//   - vk_cache_hits_total{layer="redis"} - Cache hits
//   - vk_cache_misses_total - Cache misses
//   - vk_cache_size_bytes{layer="redis"} - Bytes written
//   - vk_cache_errors_total{operation} - Cache operation errors (get, set, delete, purge)
package cache

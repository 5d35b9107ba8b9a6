// Package cache provides a Redis-backed cache for catalog search responses
// with ETag / Last-Modified support for conditional requests.
//
// Entries are served directly while fresh. After they expire they are kept
// in Redis for StaleRetention so the client can revalidate them with
// If-None-Match / If-Modified-Since instead of downloading the page again.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint:    "/products/search",
//		QueryParams: url.Values{"search": {"hat"}, "page": {"0"}},
//		Tenant:      "3f9a0c",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the catalog
//	}
//
// # Metrics
//
//   - catalog_cache_hits_total{layer="redis"} - Cache hits
//   - catalog_cache_misses_total - Cache misses
//   - catalog_cache_size_bytes{layer="redis"} - Bytes written
//   - catalog_304_responses_total - Successful revalidations
//   - catalog_conditional_requests_total - Conditional requests sent
//   - catalog_cache_errors_total{operation} - Cache operation errors
package cache

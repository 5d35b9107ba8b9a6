package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey identifies a cached catalog response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/products/search")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"search": "hat", "page": "0"})
	QueryParams url.Values

	// Tenant separates entries fetched with different API keys. It is a
	// fingerprint, never the key itself.
	Tenant string
}

// String generates a deterministic cache key string.
// Format: catalog:endpoint:query1=val1:query2=val2:tenant=abc
//
// Example:
//
//	catalog:products/search:limit=10:page=0:search=hat:tenant=3f9a0c
func (k CacheKey) String() string {
	parts := []string{"catalog"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, url.QueryEscape(k.QueryParams.Get(key))))
		}
	}

	if k.Tenant != "" {
		parts = append(parts, "tenant="+k.Tenant)
	}

	return strings.Join(parts, ":")
}

// Pattern returns a Redis MATCH pattern covering every cached query of
// endpoint. A non-empty tenant restricts it to that tenant's entries.
func Pattern(endpoint, tenant string) string {
	pattern := "catalog:" + strings.Trim(endpoint, "/") + ":*"
	if tenant != "" {
		pattern += "tenant=" + tenant
	}
	return pattern
}

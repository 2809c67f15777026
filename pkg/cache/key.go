package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// tokenParam is never part of a cache key; the token is represented by Scope.
const tokenParam = "access_token"

// CacheKey represents a unique identifier for a cached VK response.
type CacheKey struct {
	// Method is the VK API method (e.g., "wall.get")
	Method string

	// Params are the encoded call parameters (e.g., {"owner_id": "-1", "offset": "100"})
	Params url.Values

	// Scope separates responses fetched with different access tokens ("" for anonymous calls)
	Scope string
}

// String generates a deterministic cache key string.
// Format: vk:method:param1=val1:param2=val2:@scope
//
// Example:
//
//	vk:wall.get:count=100:offset=0:owner_id=-1:@9f86d081884c7d65
//
// Every component is query-escaped, so ':', '=' and '@' only ever appear as
// separators and a parameter value cannot imitate another parameter or a scope.
// Repeated parameters contribute one pair per value.
func (k CacheKey) String() string {
	parts := []string{"vk"}

	if k.Method != "" {
		parts = append(parts, url.QueryEscape(k.Method))
	}

	// Add params (sorted for determinism)
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			if key == tokenParam {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			name := url.QueryEscape(key)
			for _, v := range k.Params[key] {
				parts = append(parts, name+"="+url.QueryEscape(v))
			}
		}
	}

	if k.Scope != "" {
		parts = append(parts, "@"+url.QueryEscape(k.Scope))
	}

	return strings.Join(parts, ":")
}

// ScopeForToken derives a stable, non-reversible scope from an access token.
func ScopeForToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// KeyPattern returns the Redis glob matching every key of method, or every VK key
// when method is empty. The glob also matches methods sharing the prefix
// (wall.get matches wall.getById); use KeyBelongsTo to filter.
func KeyPattern(method string) string {
	if method == "" {
		return "vk:*"
	}
	return "vk:" + url.QueryEscape(method) + "*"
}

// KeyBelongsTo reports whether a key string produced by CacheKey.String was built for method.
func KeyBelongsTo(key, method string) bool {
	if method == "" {
		return strings.HasPrefix(key, "vk:")
	}
	prefix := "vk:" + url.QueryEscape(method)
	return key == prefix || strings.HasPrefix(key, prefix+":")
}

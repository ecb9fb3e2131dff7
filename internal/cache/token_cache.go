package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"image-derivatives/internal/codec"
)

// TokenCache memoises decoded tokens so repeat requests for a popular
// derivative skip the private key operation. Only successful decodes are
// stored; a miss simply decodes again.
type TokenCache struct {
	entries *lru.Cache[string, codec.TransformRequest]
	hits    int64
	misses  int64
}

// NewTokenCache creates a cache holding up to size decoded tokens. A size of
// zero or less disables caching.
func NewTokenCache(size int) (*TokenCache, error) {
	tc := &TokenCache{}
	if size <= 0 {
		return tc, nil
	}

	entries, err := lru.New[string, codec.TransformRequest](size)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	tc.entries = entries
	return tc, nil
}

// Decode returns the cached request for token or decodes it with c.
func (tc *TokenCache) Decode(c *codec.Codec, token string) (codec.TransformRequest, error) {
	if tc.entries != nil {
		if req, ok := tc.entries.Get(token); ok {
			atomic.AddInt64(&tc.hits, 1)
			return req, nil
		}
	}
	atomic.AddInt64(&tc.misses, 1)

	req, err := c.Decode(token)
	if err != nil {
		return codec.TransformRequest{}, err
	}
	if tc.entries != nil {
		tc.entries.Add(token, req)
	}
	return req, nil
}

// GetStats returns cache statistics in the shape the health endpoint emits.
func (tc *TokenCache) GetStats() map[string]interface{} {
	hits := atomic.LoadInt64(&tc.hits)
	misses := atomic.LoadInt64(&tc.misses)

	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	entries := 0
	if tc.entries != nil {
		entries = tc.entries.Len()
	}

	return map[string]interface{}{
		"enabled":  tc.entries != nil,
		"entries":  entries,
		"hits":     hits,
		"misses":   misses,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}
}

package pipeline

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const cacheCapacity = 4096

// CachedPipeline memoizes candidate lists per masked input. The model is
// deterministic for a given input, so callers still sample on every call.
type CachedPipeline struct {
	Pipeline
	cache *ttlcache.Cache[string, []Candidate]
}

// Cached wraps p with a TTL cache. Close stops the expiry loop.
func Cached(p Pipeline, ttl time.Duration) *CachedPipeline {
	c := ttlcache.New[string, []Candidate](
		ttlcache.WithTTL[string, []Candidate](ttl),
		ttlcache.WithCapacity[string, []Candidate](cacheCapacity),
		ttlcache.WithDisableTouchOnHit[string, []Candidate](),
	)
	go c.Start()
	return &CachedPipeline{Pipeline: p, cache: c}
}

func (c *CachedPipeline) Fill(ctx context.Context, text string) ([]Candidate, error) {
	if item := c.cache.Get(text); item != nil {
		return item.Value(), nil
	}
	cands, err := c.Pipeline.Fill(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(cands) > 0 {
		c.cache.Set(text, cands, ttlcache.DefaultTTL)
	}
	return cands, nil
}

// Close stops the cache's expiry loop.
func (c *CachedPipeline) Close() error {
	c.cache.Stop()
	return nil
}

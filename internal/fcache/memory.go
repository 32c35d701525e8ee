package fcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/moderncolours/paintops/internal/api"
	"github.com/moderncolours/paintops/internal/cache"
)

const memoryCacheSize = 1024

// MemoryCache is the single-process backend, an LRU with per-entry TTL.
type MemoryCache struct {
	inner *cache.TTLCache[string, *api.ForecastResponse]
}

// NewMemoryCache creates an in-process forecast cache.
func NewMemoryCache() (*MemoryCache, error) {
	inner, err := cache.NewTTLCache[string, *api.ForecastResponse](memoryCacheSize, DefaultTTL)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{inner: inner}, nil
}

func (c *MemoryCache) Get(ctx context.Context, skuID int64, region string, horizon int) (*api.ForecastResponse, error) {
	resp, ok := c.inner.Get(cacheKey(skuID, region, horizon))
	if !ok {
		return nil, nil
	}
	return resp, nil
}

func (c *MemoryCache) Set(ctx context.Context, resp *api.ForecastResponse) error {
	c.inner.Set(cacheKey(resp.SKUID, resp.Region, resp.Horizon), resp)
	return nil
}

// Invalidate drops every horizon cached for the SKU/region pair.
func (c *MemoryCache) Invalidate(ctx context.Context, skuID int64, region string) error {
	prefix := fmt.Sprintf("forecast:%d|%s|", skuID, region)
	for _, key := range c.inner.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.inner.Delete(key)
		}
	}
	return nil
}

// HitRate reports the fraction of lookups served from cache.
func (c *MemoryCache) HitRate() float64 {
	return c.inner.HitRate()
}

func (c *MemoryCache) Close() error {
	c.inner.Purge()
	return nil
}

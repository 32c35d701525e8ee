package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTLCache is a size-bounded LRU cache whose entries expire after a fixed
// duration. Forecast baselines are expensive to recompute, so the server
// keeps recent ones here keyed by sku/region/horizon; bounding the size keeps
// memory flat however many distinct queries the dashboard issues.
type TTLCache[K comparable, V any] struct {
	mu     sync.Mutex
	cache  *lru.Cache[K, ttlEntry[V]]
	ttl    time.Duration
	hits   uint64
	misses uint64
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTLCache creates a cache holding at most size entries, each alive for
// ttl (0 disables expiry).
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) (*TTLCache[K, V], error) {
	inner, err := lru.New[K, ttlEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{cache: inner, ttl: ttl}, nil
}

// Get returns the cached value, or false when absent or expired. Expired
// entries are removed on access.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache.Get(key)
	if ok && c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.cache.Remove(key)
		ok = false
	}
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return entry.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	c.cache.Add(key, ttlEntry[V]{value: value, expiresAt: expiresAt})
}

// Delete removes a key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// Len returns the number of live entries, counting any not yet expired.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Keys returns the cached keys from oldest to newest. Expired entries may
// still appear until their next Get.
func (c *TTLCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Keys()
}

// Purge drops every entry.
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// HitRate reports the fraction of lookups served from cache.
func (c *TTLCache[K, V]) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

package rasterservice

import (
	"context"
	"sync"

	"github.com/paulmach/orb"

	"github.com/Riverscapes/hydrologic-regimes-tool/internal/domain"
	"github.com/Riverscapes/hydrologic-regimes-tool/internal/observability"
)

// CachedSampler wraps a RasterSampler with an in-memory LRU cache keyed by
// raster and point. No-data answers are cached too; errors are not.
type CachedSampler struct {
	inner   domain.RasterSampler
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSampler creates a cache decorator around a sampler.
func NewCachedSampler(inner domain.RasterSampler, maxEntries int, metrics *observability.Metrics) *CachedSampler {
	return &CachedSampler{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedSampler) ValueAt(ctx context.Context, pt orb.Point, raster domain.RasterHandle) (float64, bool, error) {
	key := cacheKey{raster: raster, pt: pt}
	if v, ok := c.cache.get(key); ok {
		c.metrics.SampleCache.WithLabelValues("hit").Inc()
		return v.value, v.ok, nil
	}
	c.metrics.SampleCache.WithLabelValues("miss").Inc()

	value, ok, err := c.inner.ValueAt(ctx, pt, raster)
	if err != nil {
		return value, ok, err
	}
	c.cache.put(key, cachedValue{value: value, ok: ok})
	return value, ok, nil
}

type cacheKey struct {
	raster domain.RasterHandle
	pt     orb.Point
}

type cachedValue struct {
	value float64
	ok    bool
}

// lruCache is a simple thread-safe LRU cache of samples.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[cacheKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   cacheKey
	value cachedValue
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[cacheKey]*entry),
	}
}

func (c *lruCache) get(key cacheKey) (cachedValue, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return cachedValue{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key cacheKey, value cachedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries <= 0 {
		return
	}
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

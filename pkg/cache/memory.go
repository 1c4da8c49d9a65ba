package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTTL is how long a fetched result set stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity bounds the number of distinct result sets kept.
	DefaultCapacity = 50
)

type memoryItem[V any] struct {
	value      V
	insertedAt time.Time
}

// ExpiringCache is an in-process LRU whose entries go stale after a fixed
// TTL counted from insertion. Stale entries are removed lazily by Get.
// It is safe for concurrent use.
type ExpiringCache[V any] struct {
	items *lru.Cache[string, memoryItem[V]]
	ttl   time.Duration
	now   func() time.Time
}

// Option configures an ExpiringCache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewExpiringCache creates a cache holding at most capacity entries for ttl
// each. Non-positive values fall back to the defaults.
func NewExpiringCache[V any](capacity int, ttl time.Duration, opts ...Option) *ExpiringCache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	// lru.New only fails for a non-positive size, which is excluded above.
	items, _ := lru.New[string, memoryItem[V]](capacity)

	return &ExpiringCache[V]{
		items: items,
		ttl:   ttl,
		now:   o.now,
	}
}

// Get returns the value for key. Absent and stale entries are misses; a
// stale entry is evicted on the way out. A hit refreshes recency.
func (c *ExpiringCache[V]) Get(key string) (V, bool) {
	var zero V

	item, ok := c.items.Get(key)
	if !ok {
		CacheMisses.WithLabelValues(LayerMemory).Inc()
		return zero, false
	}

	if c.now().Sub(item.insertedAt) > c.ttl {
		c.items.Remove(key)
		CacheEvictions.WithLabelValues(ReasonExpired).Inc()
		CacheMisses.WithLabelValues(LayerMemory).Inc()
		return zero, false
	}

	CacheHits.WithLabelValues(LayerMemory).Inc()
	return item.value, true
}

// Peek is Get without side effects: it neither records hits or misses nor
// refreshes recency, and leaves stale entries in place.
func (c *ExpiringCache[V]) Peek(key string) (V, bool) {
	var zero V

	item, ok := c.items.Peek(key)
	if !ok || c.now().Sub(item.insertedAt) > c.ttl {
		return zero, false
	}
	return item.value, true
}

// Set stores value under key, evicting the least recently used entry first
// when the cache is full.
func (c *ExpiringCache[V]) Set(key string, value V) {
	if evicted := c.items.Add(key, memoryItem[V]{value: value, insertedAt: c.now()}); evicted {
		CacheEvictions.WithLabelValues(ReasonCapacity).Inc()
	}
	CacheEntries.WithLabelValues(LayerMemory).Set(float64(c.items.Len()))
}

// Delete removes key if present.
func (c *ExpiringCache[V]) Delete(key string) {
	c.items.Remove(key)
	CacheEntries.WithLabelValues(LayerMemory).Set(float64(c.items.Len()))
}

// Clear drops every entry.
func (c *ExpiringCache[V]) Clear() {
	c.items.Purge()
	CacheEntries.WithLabelValues(LayerMemory).Set(0)
}

// Len returns the number of stored entries, stale ones included.
func (c *ExpiringCache[V]) Len() int {
	return c.items.Len()
}

// TTL returns the configured time-to-live.
func (c *ExpiringCache[V]) TTL() time.Duration {
	return c.ttl
}

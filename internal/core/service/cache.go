package service

import (
	"strings"
	"sync"
	"time"

	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
	"github.com/yndnr/dogpay-go/pkg/cmap"
)

// Query keys of the derived cache. Every ledger query lives under
// QueryPaymentsPrefix.
const (
	QueryPaymentsPrefix = "payments/"
	QueryBalance        = QueryPaymentsPrefix + "balance"
	QueryHistory        = QueryPaymentsPrefix + "history"
)

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// DerivedCache holds short-lived query results derived from the current
// session. It is cleared whenever the session changes hands.
type DerivedCache struct {
	entries *cmap.Map[string, cacheEntry]
	now     func() time.Time
	metrics *metric.Registry

	mu      sync.Mutex
	onClear []func()
}

// CacheOption configures a DerivedCache.
type CacheOption func(*DerivedCache)

// WithCacheClock replaces time.Now.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *DerivedCache) { c.now = now }
}

// WithCacheMetrics records hits and misses.
func WithCacheMetrics(m *metric.Registry) CacheOption {
	return func(c *DerivedCache) { c.metrics = m }
}

// NewDerivedCache creates an empty cache.
func NewDerivedCache(opts ...CacheOption) *DerivedCache {
	c := &DerivedCache{
		entries: cmap.NewWithShards[string, cacheEntry](4),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if it was stored less than ttl ago.
func (c *DerivedCache) Get(key string, ttl time.Duration) (any, bool) {
	e, ok := c.entries.Get(key)
	hit := ok && c.now().Sub(e.fetchedAt) < ttl
	if c.metrics != nil {
		result := metric.CacheMiss
		if hit {
			result = metric.CacheHit
		}
		c.metrics.CacheLookups.WithLabelValues(key, result).Inc()
	}
	if !hit {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *DerivedCache) Set(key string, value any) {
	c.entries.Set(key, cacheEntry{value: value, fetchedAt: c.now()})
}

// Invalidate drops the given keys.
func (c *DerivedCache) Invalidate(keys ...string) {
	for _, k := range keys {
		c.entries.Delete(k)
	}
}

// InvalidatePrefix drops every key starting with prefix and returns how
// many were dropped.
func (c *DerivedCache) InvalidatePrefix(prefix string) int {
	return c.entries.DeleteFunc(func(key string, _ cacheEntry) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// OnClear registers fn to run on every Clear, for state kept outside the
// cache that must not outlive the session either.
func (c *DerivedCache) OnClear(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClear = append(c.onClear, fn)
}

// Clear drops every entry.
func (c *DerivedCache) Clear() {
	c.entries.Clear()
	c.mu.Lock()
	hooks := append([]func(){}, c.onClear...)
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Len returns the number of entries, fresh or stale.
func (c *DerivedCache) Len() int {
	return c.entries.Count()
}

// cachedQuery serves key from c when fresh, otherwise calls fetch and
// stores the result.
func cachedQuery[T any](c *DerivedCache, key string, ttl time.Duration, fresh bool, fetch func() (T, error)) (T, error) {
	if !fresh {
		if v, ok := c.Get(key, ttl); ok {
			if typed, ok := v.(T); ok {
				return typed, nil
			}
		}
	}
	v, err := fetch()
	if err != nil {
		var zero T
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/dogpay-go/internal/telemetry/metric"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestDerivedCache_TTL(t *testing.T) {
	clock := newFakeClock()
	c := NewDerivedCache(WithCacheClock(clock.Now))

	c.Set(QueryBalance, 42.0)
	if v, ok := c.Get(QueryBalance, 10*time.Second); !ok || v.(float64) != 42 {
		t.Errorf("Get() = %v, %v; want 42, true", v, ok)
	}

	clock.Advance(10 * time.Second)
	if _, ok := c.Get(QueryBalance, 10*time.Second); ok {
		t.Error("entry older than ttl should miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, stale entries are kept until replaced", c.Len())
	}
}

func TestDerivedCache_InvalidateClear(t *testing.T) {
	c := NewDerivedCache()
	c.Set(QueryBalance, 1)
	c.Set(QueryHistory, 2)
	c.Set("auth/me", 3)

	c.Invalidate(QueryBalance, QueryHistory)
	if c.Len() != 1 {
		t.Errorf("Len() after Invalidate = %d, want 1", c.Len())
	}

	c.Set(QueryBalance, 1)
	c.Set(QueryHistory, 2)
	if n := c.InvalidatePrefix(QueryPaymentsPrefix); n != 2 {
		t.Errorf("InvalidatePrefix() = %d, want 2", n)
	}
	if _, ok := c.Get("auth/me", time.Minute); !ok {
		t.Error("InvalidatePrefix dropped an unrelated key")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestDerivedCache_Metrics(t *testing.T) {
	m := metric.NewRegistry()
	c := NewDerivedCache(WithCacheMetrics(m))

	c.Get(QueryBalance, time.Minute)
	c.Set(QueryBalance, 1)
	c.Get(QueryBalance, time.Minute)
	c.Get(QueryBalance, time.Minute)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(QueryBalance, metric.CacheMiss)); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(QueryBalance, metric.CacheHit)); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
}

func TestCachedQuery(t *testing.T) {
	c := NewDerivedCache()
	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v1, _ := cachedQuery(c, "q", time.Minute, false, fetch)
	v2, _ := cachedQuery(c, "q", time.Minute, false, fetch)
	if v1 != 1 || v2 != 1 || calls != 1 {
		t.Errorf("cached fetch: v1=%d v2=%d calls=%d", v1, v2, calls)
	}

	v3, _ := cachedQuery(c, "q", time.Minute, true, fetch)
	if v3 != 2 || calls != 2 {
		t.Errorf("fresh fetch: v3=%d calls=%d", v3, calls)
	}

	boom := errors.New("boom")
	if _, err := cachedQuery(c, "q", time.Minute, true, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("error not propagated: %v", err)
	}
	if v, _ := c.Get("q", time.Minute); v.(int) != 2 {
		t.Error("failed fetch must not overwrite the cached value")
	}
}

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache[V any](clock *fakeClock) *TTLCache[V] {
	c := NewTTLCache[V](0)
	c.now = clock.Now
	return c
}

func TestTTLCacheRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := newTestCache[string](clock)
	defer c.Close()

	c.Set("store_deals_1", "apples", time.Minute)
	v, ok := c.Get("store_deals_1")
	assert.True(t, ok)
	assert.Equal(t, "apples", v)

	clock.Advance(time.Minute + time.Second)
	_, ok = c.Get("store_deals_1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry should be purged on read")
}

func TestTTLCacheDefaultTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := newTestCache[int](clock)
	defer c.Close()

	c.Set("k", 1, 0)
	clock.Advance(59 * time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestTTLCacheLastWriteWins(t *testing.T) {
	c := NewTTLCache[string](time.Hour)
	defer c.Close()

	c.Set("k", "first", 0)
	c.Set("k", "second", 0)
	v, _ := c.Get("k")
	assert.Equal(t, "second", v)
}

func TestTTLCacheDeleteAndClear(t *testing.T) {
	c := NewTTLCache[string](time.Hour)
	defer c.Close()

	c.Set("a", "1", 0)
	c.Set("b", "2", 0)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Delete("missing")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	c := newTestCache[string](clock)
	defer c.Close()

	c.Set("short", "x", time.Second)
	c.Set("long", "y", time.Hour)
	clock.Advance(2 * time.Second)

	assert.Equal(t, 1, c.sweep())
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheBackgroundSweep(t *testing.T) {
	c := newTTLCache[string](time.Hour, 10*time.Millisecond)
	defer c.Close()

	c.Set("gone", "x", time.Millisecond)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

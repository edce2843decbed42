package cache

import (
	"sync/atomic"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[int], *clock) {
	c := NewLRUCache[int](maxSize, ttl)
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestLRUCapacityEviction(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be present")
	}
	c.Set("c", 3) // b is least recently used

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUSlidingExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("a", 1)

	clk.t = clk.t.Add(50 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a expired too early")
	}
	clk.t = clk.t.Add(50 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("Get should have refreshed the expiry")
	}
	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("a should be expired")
	}
}

func TestLRUCleanExpired(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	var evicted int
	c.OnEvict(func(string, int) { evicted++ })
	c.Set("a", 1)
	c.Set("b", 2)
	clk.t = clk.t.Add(30 * time.Second)
	c.Set("c", 3)
	clk.t = clk.t.Add(45 * time.Second)

	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("cleaned %d, want 2", n)
	}
	if evicted != 2 || c.Size() != 1 {
		t.Fatalf("evicted=%d size=%d", evicted, c.Size())
	}
}

func TestLRUDeleteCallsOnEvict(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	var got string
	c.OnEvict(func(key string, _ int) { got = key })
	c.Set("a", 1)
	c.Delete("a")
	c.Delete("missing")
	if got != "a" || c.Size() != 0 {
		t.Fatalf("delete: got=%q size=%d", got, c.Size())
	}
}

func TestLRUOnEvictMayReenter(t *testing.T) {
	c, _ := newTestCache(1, time.Minute)
	c.OnEvict(func(key string, _ int) { _ = c.Size() })
	c.Set("a", 1)
	c.Set("b", 2) // would deadlock if the callback ran under the lock
}

type countingCleaner struct{ n int32 }

func (c *countingCleaner) CleanExpired() int {
	atomic.AddInt32(&c.n, 1)
	return 1
}

func TestManagerCleanAllAndStop(t *testing.T) {
	var reported int
	m := NewManager(func(n int) { reported += n })
	a, b := &countingCleaner{}, &countingCleaner{}
	m.Register(a)
	m.Register(b)

	if n := m.CleanAll(); n != 2 || reported != 2 {
		t.Fatalf("CleanAll = %d reported=%d", n, reported)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}

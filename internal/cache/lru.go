package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds at most maxSize entries, each living ttl past its last
// read or write. Sessions and per-client rate limit buckets both live here.
type LRUCache[T any] struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is most recently used
	onEvict func(key string, data T)
}

type entry[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

var _ Cleaner = (*LRUCache[struct{}])(nil)

// NewLRUCache returns an empty cache. maxSize <= 0 means unbounded.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		index:   make(map[string]*list.Element),
		order:   list.New(),
	}
}

// OnEvict registers fn for every entry that leaves the cache by capacity,
// expiry or Delete. fn runs after the cache lock is released, so it may call
// back into the cache.
func (c *LRUCache[T]) OnEvict(fn func(key string, data T)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// unlockAndNotify releases the lock, then reports gone entries.
func (c *LRUCache[T]) unlockAndNotify(gone []*entry[T]) {
	fn := c.onEvict
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range gone {
		fn(e.key, e.data)
	}
}

func (c *LRUCache[T]) unlink(el *list.Element) *entry[T] {
	e := c.order.Remove(el).(*entry[T])
	delete(c.index, e.key)
	return e
}

// Get returns the value for key and extends its lifetime.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	var zero T
	c.mu.Lock()
	el, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	e := el.Value.(*entry[T])
	now := c.now()
	if now.After(e.expiresAt) {
		c.unlockAndNotify([]*entry[T]{c.unlink(el)})
		return zero, false
	}
	e.expiresAt = now.Add(c.ttl)
	c.order.MoveToFront(el)
	c.mu.Unlock()
	return e.data, true
}

// Set stores data under key, evicting the least recently used entry when
// the cache is full.
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	e := &entry[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return
	}
	c.index[key] = c.order.PushFront(e)

	var gone []*entry[T]
	if c.maxSize > 0 && c.order.Len() > c.maxSize {
		gone = append(gone, c.unlink(c.order.Back()))
	}
	c.unlockAndNotify(gone)
}

// Delete removes key. Missing keys are ignored.
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	el, ok := c.index[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.unlockAndNotify([]*entry[T]{c.unlink(el)})
}

// CleanExpired drops every expired entry and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var gone []*entry[T]
	// Walk from the least recently used end; expiry grows toward the front.
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[T]).expiresAt) {
			gone = append(gone, c.unlink(el))
		}
		el = prev
	}
	c.unlockAndNotify(gone)
	return len(gone)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Package cache provides a small in-memory, TTL-expiring, LRU-bounded
// memoizer used by the fetcher to dedupe repeated URLs within a single run.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache memoizes GetOrLoad results by key, with LRU eviction past
// maxEntries and TTL expiry, and coalesces concurrent loads for the same
// key into a single call.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]*list.Element
	evictList  *list.List
	maxEntries int
	ttl        time.Duration

	// inflight holds in-progress loads keyed by cache key, so concurrent
	// GetOrLoad calls for the same key share one loadFn invocation.
	inflight map[K]*call[V]
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

type call[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// New creates a cache with the given max entries and TTL.
func New[K comparable, V any](maxEntries int, ttl time.Duration) *Cache[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache[K, V]{
		items:      make(map[K]*list.Element),
		evictList:  list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		inflight:   make(map[K]*call[V]),
	}
}

// get retrieves a value from the cache. Returns the value and true if
// found and not expired, or the zero value and false otherwise.
func (c *Cache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	e := el.Value.(*entry[K, V])
	if time.Now().After(e.expiresAt) {
		c.removeLocked(el)
		var zero V
		return zero, false
	}

	c.evictList.MoveToFront(el)
	return e.value, true
}

// set stores a value in the cache with the cache's configured TTL.
func (c *Cache[K, V]) set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		return
	}

	e := &entry[K, V]{key: key, value: value, expiresAt: expiresAt}
	el := c.evictList.PushFront(e)
	c.items[key] = el

	for c.evictList.Len() > c.maxEntries {
		c.evictOldestLocked()
	}
}

// GetOrLoad returns the cached value for key, or calls loadFn to populate it.
// Concurrent calls for the same key share a single load (singleflight).
func (c *Cache[K, V]) GetOrLoad(key K, loadFn func() (V, error)) (V, error) {
	if v, ok := c.get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	if cl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		cl.wg.Wait()
		if cl.err != nil {
			return cl.val, cl.err
		}
		if v, ok := c.get(key); ok {
			return v, nil
		}
		return cl.val, nil
	}

	cl := &call[V]{}
	cl.wg.Add(1)
	c.inflight[key] = cl
	c.mu.Unlock()

	cl.val, cl.err = loadFn()
	if cl.err == nil {
		c.set(key, cl.val)
	}
	cl.wg.Done()

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return cl.val, cl.err
}

func (c *Cache[K, V]) removeLocked(el *list.Element) {
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.evictList.Remove(el)
}

func (c *Cache[K, V]) evictOldestLocked() {
	el := c.evictList.Back()
	if el == nil {
		return
	}
	c.removeLocked(el)
}

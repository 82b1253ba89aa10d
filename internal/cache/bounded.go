// Package cache provides small in-process caches for immutable remote
// resources such as decoded images and resolved icon URLs.
package cache

import "sync"

// Bounded is a fixed-capacity key/value cache that evicts in insertion order.
// Reads never promote a key, and re-inserting an existing key replaces its
// value without moving it in the eviction order.
type Bounded[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    []K
	items    map[K]V
}

// NewBounded creates a cache holding at most capacity entries.
// A capacity below 1 is treated as 1.
func NewBounded[K comparable, V any](capacity int) *Bounded[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[K, V]{
		capacity: capacity,
		order:    make([]K, 0, capacity),
		items:    make(map[K]V, capacity),
	}
}

func (c *Bounded[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *Bounded[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Put stores value under key. When the cache is full and key is new, the
// oldest inserted key is evicted first.
func (c *Bounded[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		c.items[key] = value
		return
	}
	if len(c.items) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
	c.order = append(c.order, key)
	c.items[key] = value
}

// Remove drops key if present.
func (c *Bounded[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		return
	}
	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Bounded[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Bounded[K, V]) Cap() int { return c.capacity }

// Keys returns the cached keys, oldest first.
func (c *Bounded[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]K(nil), c.order...)
}

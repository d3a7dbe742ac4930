// Package cache provides a typed, concurrency-safe in-memory store keyed by string.
package cache

import "sync"

// InMemoryCache holds values of a single type. The zero value is not usable; call New.
type InMemoryCache[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New returns an empty cache.
func New[V any]() *InMemoryCache[V] {
	return &InMemoryCache[V]{items: make(map[string]V)}
}

// Get returns the value stored under key and whether it was present.
func (c *InMemoryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, found := c.items[key]
	return item, found
}

// Set stores value under key, replacing any previous entry.
func (c *InMemoryCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

// SetIfAbsent stores value only when key is missing. It returns the value now
// held and whether this call stored it.
func (c *InMemoryCache[V]) SetIfAbsent(key string, value V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, found := c.items[key]; found {
		return existing, false
	}
	c.items[key] = value
	return value, true
}

func (c *InMemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len reports the number of entries.
func (c *InMemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

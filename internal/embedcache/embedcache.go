// Package embedcache provides the one piece of process-wide shared mutable
// state the engine's design permits: a bounded cache of live model handles,
// keyed by model identity, so that repeated Build/Query calls against the
// same model don't each pay to re-acquire it. A process-wide cache of
// loaded model handles is acceptable shared mutable state as long as Index
// itself stays immutable — the cached value here is the model handle
// itself, of a type the host defines, not a computed embedding vector.
package embedcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is deliberately small: model handles are far larger than
// cached embedding vectors, so a process should only keep a handful warm.
const DefaultSize = 32

// Cache is a process-wide, concurrency-safe cache of model handles of type
// H, keyed by model identity. The zero value is not usable; construct with
// New.
type Cache[H any] struct {
	inner *lru.Cache[string, H]
}

// New creates a Cache holding at most size entries. size <= 0 coerces to
// DefaultSize.
func New[H any](size int) *Cache[H] {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[string, H](size)
	return &Cache[H]{inner: c}
}

// Get returns the cached handle for key, if present.
func (c *Cache[H]) Get(key string) (H, bool) {
	return c.inner.Get(key)
}

// GetOrLoad returns the cached handle for key, loading and caching it via
// load on a miss. Concurrent GetOrLoad calls for the same key may both
// invoke load; whichever handle is stored last wins. Callers whose load is
// expensive enough to care should synchronize construction themselves
// (e.g. with a singleflight group) — this cache only bounds memory, it does
// not deduplicate concurrent loads.
func (c *Cache[H]) GetOrLoad(key string, load func() (H, error)) (H, error) {
	if h, ok := c.inner.Get(key); ok {
		return h, nil
	}
	h, err := load()
	if err != nil {
		var zero H
		return zero, err
	}
	c.inner.Add(key, h)
	return h, nil
}

// Remove evicts key, if present.
func (c *Cache[H]) Remove(key string) {
	c.inner.Remove(key)
}

// Len returns the number of handles currently cached.
func (c *Cache[H]) Len() int {
	return c.inner.Len()
}

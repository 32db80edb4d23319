package hashcache

import (
	"sync"
)

// Entry is one cached payload.
type Entry[T any] struct {
	Hash    Hash `json:"hash"`
	Payload T    `json:"payload"`
	Index   int  `json:"-"`
}

// Appender receives new entries for persistence.
type Appender[T any] interface {
	Append(Entry[T])
}

// Cache is a similarity-keyed store scanned linearly on lookup. It is meant for
// tens to hundreds of entries; lookups are O(n).
type Cache[T any] struct {
	mu        sync.RWMutex
	entries   []Entry[T]
	threshold int
	sink      Appender[T]
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithThreshold overrides DefaultThreshold.
func WithThreshold[T any](d int) Option[T] {
	return func(c *Cache[T]) { c.threshold = d }
}

// WithAppender persists every Put through a.
func WithAppender[T any](a Appender[T]) Option[T] {
	return func(c *Cache[T]) { c.sink = a }
}

// WithEntries seeds the cache, typically from Load.
func WithEntries[T any](entries []Entry[T]) Option[T] {
	return func(c *Cache[T]) {
		for _, e := range entries {
			e.Index = len(c.entries)
			c.entries = append(c.entries, e)
		}
	}
}

// New creates a cache.
func New[T any](opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put appends payload under h.
func (c *Cache[T]) Put(h Hash, payload T) {
	c.mu.Lock()
	e := Entry[T]{Hash: h, Payload: payload, Index: len(c.entries)}
	c.entries = append(c.entries, e)
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		sink.Append(e)
	}
}

// Nearest returns the closest entry within the threshold and its distance.
// Ties go to the lowest insertion index.
func (c *Cache[T]) Nearest(h Hash) (Entry[T], int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best, bestDist := -1, 0
	for i, e := range c.entries {
		d := e.Hash.Distance(h)
		if d > c.threshold {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	if best < 0 {
		var zero Entry[T]
		return zero, 0, false
	}
	return c.entries[best], bestDist, true
}

// Len returns the number of entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

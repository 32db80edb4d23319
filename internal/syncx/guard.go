// Package syncx provides the small synchronization primitives shared by sessions.
package syncx

import "sync"

// Guard wraps a value behind an RWMutex. Use it for small mutable settings that
// readers poll frequently, such as a session's render mode.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Get returns a copy of the value (T should be a value type or immutable).
func (g *Guard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Update mutates the value in place under the write lock and returns the result.
func (g *Guard[T]) Update(fn func(*T)) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
	return g.value
}

package syncx

import "sync/atomic"

// Snapshot is one committed value together with its commit number.
type Snapshot[T any] struct {
	Version uint64
	Value   T
}

// Versioned holds an immutable value replaced as a whole on every commit.
// Readers never block and never see a half-written value.
type Versioned[T any] struct {
	cur atomic.Pointer[Snapshot[T]]
}

// NewVersioned returns a holder whose version 0 is initial.
func NewVersioned[T any](initial T) *Versioned[T] {
	v := &Versioned[T]{}
	v.cur.Store(&Snapshot[T]{Value: initial})
	return v
}

// Load returns the latest committed snapshot.
func (v *Versioned[T]) Load() Snapshot[T] {
	return *v.cur.Load()
}

// Commit publishes val as the next version and returns that version.
func (v *Versioned[T]) Commit(val T) uint64 {
	for {
		old := v.cur.Load()
		next := &Snapshot[T]{Version: old.Version + 1, Value: val}
		if v.cur.CompareAndSwap(old, next) {
			return next.Version
		}
	}
}

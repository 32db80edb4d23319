// Package resilience keeps a failing provider from stalling the processing
// goroutine: a circuit breaker fails fast while a provider is down, and Retry
// backs off on transient errors.
package resilience

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the circuit breaker state.
type State uint32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Breaker is a lock-free circuit breaker for one provider.
type Breaker struct {
	name        string
	cfg         Config
	state       atomic.Uint32
	failures    atomic.Int32
	successes   atomic.Int32
	lastFailure atomic.Int64
	onChange    func(from, to State)
}

// NewBreaker creates a breaker; name appears in its log lines.
func NewBreaker(name string, cfg Config) *Breaker {
	b := &Breaker{name: name, cfg: cfg.withDefaults()}
	b.state.Store(uint32(Closed))
	return b
}

// OnChange registers a state transition callback.
func (b *Breaker) OnChange(fn func(from, to State)) *Breaker {
	b.onChange = fn
	return b
}

// Allow returns nil if a call may proceed.
func (b *Breaker) Allow() error {
	if State(b.state.Load()) != Open {
		return nil
	}
	if time.Since(time.Unix(0, b.lastFailure.Load())) > b.cfg.ResetTimeout {
		b.transition(HalfOpen)
		return nil
	}
	return ErrOpen
}

// Success records a successful call.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.transition(Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	b.lastFailure.Store(time.Now().UnixNano())
	n := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.transition(Open)
	case Closed:
		if n >= int32(b.cfg.Threshold) {
			b.transition(Open)
		}
	}
}

func (b *Breaker) State() State { return State(b.state.Load()) }

func (b *Breaker) transition(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}
	b.successes.Store(0)
	switch to {
	case Closed:
		b.failures.Store(0)
		slog.Info("provider breaker closed", "provider", b.name)
	case Open:
		slog.Warn("provider breaker opened", "provider", b.name, "failures", b.failures.Load())
	case HalfOpen:
		slog.Info("provider breaker half-open", "provider", b.name)
	}
	if b.onChange != nil {
		b.onChange(from, to)
	}
}

// Execute runs fn under the breaker.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	v, err := fn()
	if err != nil {
		b.Failure()
		return zero, err
	}
	b.Success()
	return v, nil
}

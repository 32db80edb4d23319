package server

import (
	"sync"
	"time"
)

// rateLimiter tracks event timestamps using a sliding window.
type rateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	timestamps []time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	return &rateLimiter{limit: limit, window: window}
}

// allow checks if an event is allowed and records it if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= r.limit {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// limiters hands out one limiter per session, shared by every connection
// pushing into that session.
type limiters struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	m      map[string]*rateLimiter
}

func newLimiters(limit int, window time.Duration) *limiters {
	return &limiters{limit: limit, window: window, m: make(map[string]*rateLimiter)}
}

func (l *limiters) get(session string) *rateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.m[session]
	if !ok {
		rl = newRateLimiter(l.limit, l.window)
		l.m[session] = rl
	}
	return rl
}

func (l *limiters) forget(session string) {
	l.mu.Lock()
	delete(l.m, session)
	l.mu.Unlock()
}

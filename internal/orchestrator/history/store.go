// Package history keeps a bounded record of matched dialogue per session and
// fans new matches out to subscribers.
package history

import (
	"slices"
	"sync"
	"time"
)

// Line is a matched script line.
type Line struct {
	ID      int    `json:"id"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Event is one recorded match.
type Event struct {
	Time        time.Time `json:"time"`
	Version     uint64    `json:"version"`
	Matches     []int     `json:"matches"`
	Lines       []Line    `json:"lines"`
	Recognized  string    `json:"recognized"`
	Translation string    `json:"translation,omitempty"`
}

// Store is an in-memory ring of events.
type Store struct {
	mu      sync.RWMutex
	entries []Event
	maxSize int
	buffer  int
	subs    map[int]chan Event
	nextSub int
}

// NewStore keeps at most maxEntries events; each subscriber channel buffers
// eventBuffer events.
func NewStore(maxEntries, eventBuffer int) *Store {
	return &Store{
		entries: make([]Event, 0, maxEntries),
		maxSize: maxEntries,
		buffer:  eventBuffer,
		subs:    make(map[int]chan Event),
	}
}

// Add records e unless its matches repeat the previous event, and reports
// whether it was recorded.
func (s *Store) Add(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.entries); n > 0 && slices.Equal(s.entries[n-1].Matches, e.Matches) {
		return false
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return true
}

// Recent returns up to n of the newest events, oldest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	return slices.Clone(s.entries[start:])
}

// Since returns events recorded within the last d.
func (s *Store) Since(d time.Duration) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-d)
	var out []Event
	for _, e := range s.entries {
		if !e.Time.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe returns a channel of new events and a function that ends the
// subscription. Slow subscribers miss events rather than block Add.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, s.buffer)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Close ends every subscription.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

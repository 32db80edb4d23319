package screen

import (
	"image"
	"sync"
	"time"
)

// Frame is one captured image.
type Frame struct {
	Image image.Image
	At    time.Time
	Seq   uint64
}

// Slot is a single-frame mailbox. Writers always overwrite; an unread frame
// that gets overwritten counts as dropped. There is no queue.
type Slot struct {
	mu      sync.Mutex
	frame   *Frame
	seq     uint64
	drops   uint64
	written uint64
}

// Put stores img as the latest frame and returns its sequence number.
func (s *Slot) Put(img image.Image) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil {
		s.drops++
	}
	s.seq++
	s.written++
	s.frame = &Frame{Image: img, At: time.Now(), Seq: s.seq}
	return s.seq
}

// Take removes and returns the latest frame, if any.
func (s *Slot) Take() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return Frame{}, false
	}
	f := *s.frame
	s.frame = nil
	return f, true
}

// SlotStats reports slot counters.
type SlotStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
}

func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{Written: s.written, Dropped: s.drops}
}

package hashcache

import (
	"image"
	"log/slog"
	"sync"

	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
)

// Detector decides whether a frame differs enough from the last processed one.
// Only the top half of the frame is hashed so that HUD changes lower down do
// not trigger reprocessing.
type Detector struct {
	mu        sync.Mutex
	threshold int
	hashSize  int
	last      Hash
}

// NewDetector creates a detector. Non-positive arguments select defaults.
func NewDetector(threshold, hashSize int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if hashSize <= 0 {
		hashSize = DefaultHashSize
	}
	return &Detector{threshold: threshold, hashSize: hashSize}
}

// Changed reports whether img should be processed. The first frame always is.
// The reference hash only moves when a change is reported.
func (d *Detector) Changed(img image.Image) bool {
	h, err := Compute(imageutil.TopHalf(img), d.hashSize)
	if err != nil {
		slog.Debug("change detector hash failed", "error", err)
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.last == nil {
		d.last = h
		return true
	}
	dist := d.last.Distance(h)
	if dist <= d.threshold {
		slog.Debug("frame unchanged", "distance", dist)
		return false
	}
	d.last = h
	return true
}

// Reset forgets the reference frame.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.last = nil
	d.mu.Unlock()
}

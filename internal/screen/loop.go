package screen

import (
	"context"
	"errors"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// DefaultInterval is the capture period when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Loop repeatedly captures into a Slot on its own goroutine.
type Loop struct {
	src      Capturer
	slot     *Slot
	interval time.Duration
}

// NewLoop creates a capture loop.
func NewLoop(src Capturer, slot *Slot, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{src: src, slot: slot, interval: interval}
}

// Run captures until ctx is cancelled. Failed captures are logged and skipped.
func (l *Loop) Run(ctx context.Context) {
	log := trace.Logger(ctx)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	var ready <-chan struct{}
	if p, ok := l.src.(*PushSource); ok {
		ready = p.Ready()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-ready:
		}

		img, err := l.src.Capture(ctx)
		switch {
		case errors.Is(err, ErrNoFrame):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			log.Debug("capture failed, skipping cycle", "error", err)
			continue
		case img == nil:
			continue
		}
		l.slot.Put(img)
	}
}

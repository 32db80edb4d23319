package screen

import (
	"context"
	"image"
	"sync"
)

// PushSource is a Capturer fed by a remote viewer. Capture returns each pushed
// frame at most once; pushes between two captures overwrite each other.
type PushSource struct {
	mu     sync.Mutex
	frame  image.Image
	closed bool
	notify chan struct{}
}

// NewPushSource creates an empty source.
func NewPushSource() *PushSource {
	return &PushSource{notify: make(chan struct{}, 1)}
}

// Push offers img as the newest frame.
func (p *PushSource) Push(img image.Image) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.frame = img
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Capture returns the newest unread frame or ErrNoFrame.
func (p *PushSource) Capture(context.Context) (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		return nil, ErrNoFrame
	}
	img := p.frame
	p.frame = nil
	return img, nil
}

// Ready is signalled after a push; loops may use it to wake early.
func (p *PushSource) Ready() <-chan struct{} { return p.notify }

func (p *PushSource) Close() error {
	p.mu.Lock()
	p.closed = true
	p.frame = nil
	p.mu.Unlock()
	return nil
}

package audio

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Player plays mono float32 samples.
type Player interface {
	Play(ctx context.Context, samples []float32) error
}

// DevicePlayer plays through the default output device.
type DevicePlayer struct {
	mu           sync.Mutex
	sampleRate   int
	framesPerBuf int
}

// NewDevicePlayer initializes the audio host API.
func NewDevicePlayer(sampleRate int) (*DevicePlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	return &DevicePlayer{sampleRate: sampleRate, framesPerBuf: 1024}, nil
}

// Play blocks until samples are written or ctx is cancelled. Calls are
// serialized; the device plays one clip at a time.
func (p *DevicePlayer) Play(ctx context.Context, samples []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]float32, p.framesPerBuf)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(p.sampleRate), len(buf), buf)
	if err != nil {
		return err
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	for off := 0; off < len(samples); off += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buf, samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			slog.Debug("audio write error", "error", err)
			return err
		}
	}
	return nil
}

// Close releases the audio host API.
func (p *DevicePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return portaudio.Terminate()
}

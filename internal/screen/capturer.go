// Package screen produces frames: platform screenshot capturers, a push source
// fed by remote viewers, and the latest-wins slot and loop that decouple
// capture from processing.
package screen

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
)

// MaxScreenPixels bounds decoded screenshots; large multi-monitor desktops fit.
const MaxScreenPixels = 8192 * 8192

// ErrNoFrame means the source had nothing new; the caller skips the cycle.
var ErrNoFrame = errors.New("no frame available")

// Capturer produces frames on demand.
type Capturer interface {
	Capture(ctx context.Context) (image.Image, error)
	Close() error
}

// backend implements platform-specific raw capture as encoded image bytes.
type backend interface {
	captureRaw(ctx context.Context) ([]byte, error)
}

// screenCapturer decodes backend output and strips the window title bar.
type screenCapturer struct {
	backend
	titleBar int
	tempDir  string
}

// New creates the capturer for the current platform. titleBar pixels are
// removed from the top of every frame.
func New(titleBar int) Capturer {
	tmpDir, err := os.MkdirTemp("", "dialogue-overlay-screen-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return &screenCapturer{backend: newBackend(tmpDir), titleBar: titleBar, tempDir: tmpDir}
}

func (c *screenCapturer) Capture(ctx context.Context) (image.Image, error) {
	data, err := c.captureRaw(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailure, "screenshot")
	}
	img, err := imageutil.DecodeMax(data, MaxScreenPixels)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailure, "screenshot")
	}
	return imageutil.TrimTop(img, c.titleBar), nil
}

func (c *screenCapturer) Close() error {
	if c.tempDir == "" || c.tempDir == os.TempDir() {
		return nil
	}
	return os.RemoveAll(c.tempDir)
}

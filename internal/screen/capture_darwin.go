//go:build darwin

package screen

import "context"

type darwinBackend struct{ tempDir string }

func newBackend(tempDir string) backend { return &darwinBackend{tempDir: tempDir} }

// captureRaw grabs the main display silently as JPEG.
func (d *darwinBackend) captureRaw(ctx context.Context) ([]byte, error) {
	return runToFile(ctx, d.tempDir, "screencapture", func(out string) []string {
		return []string{"-x", "-t", "jpg", "-m", out}
	})
}

//go:build linux

package screen

import (
	"context"
	"errors"
	"os/exec"
)

type linuxBackend struct{ tempDir string }

func newBackend(tempDir string) backend { return &linuxBackend{tempDir: tempDir} }

func (l *linuxBackend) captureRaw(ctx context.Context) ([]byte, error) {
	if _, err := exec.LookPath("gnome-screenshot"); err == nil {
		return runToFile(ctx, l.tempDir, "gnome-screenshot", func(out string) []string { return []string{"-f", out} })
	}
	if _, err := exec.LookPath("scrot"); err == nil {
		return runToFile(ctx, l.tempDir, "scrot", func(out string) []string { return []string{"-o", out} })
	}
	return nil, errors.New("no screenshot tool found (install gnome-screenshot or scrot)")
}

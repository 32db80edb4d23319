package screen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// runToFile runs a screenshot tool that writes its result to a file and
// returns the file contents.
func runToFile(ctx context.Context, tempDir, name string, args func(out string) []string) ([]byte, error) {
	out := filepath.Join(tempDir, "screenshot.jpg")
	cmd := exec.CommandContext(ctx, name, args(out)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	defer os.Remove(out)
	return os.ReadFile(out)
}

//go:build windows

package screen

import (
	"context"
	"errors"
)

type windowsBackend struct{}

func newBackend(string) backend { return windowsBackend{} }

// TODO: capture through DXGI desktop duplication; until then use push sessions.
func (windowsBackend) captureRaw(context.Context) ([]byte, error) {
	return nil, errors.New("screen capture not supported on windows")
}

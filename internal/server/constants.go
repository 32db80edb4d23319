// Package server exposes sessions over HTTP, MJPEG and WebSocket.
package server

import "time"

const (
	// DefaultRateLimit is the frame pushes allowed per session per window.
	DefaultRateLimit  = 30
	DefaultRateWindow = time.Second

	// DefaultMaxFrameBytes bounds an uploaded frame.
	DefaultMaxFrameBytes = 8 << 20

	// DefaultStreamInterval is how often streams check for a new render.
	DefaultStreamInterval = 100 * time.Millisecond

	// MJPEGBoundary separates parts of the multipart stream.
	MJPEGBoundary = "overlayframe"

	// DefaultJPEGQuality is used when none is configured.
	DefaultJPEGQuality = 80
)

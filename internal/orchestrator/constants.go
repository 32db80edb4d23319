package orchestrator

import "time"

const (
	// HistoryEventBuffer is the per-subscriber history channel size.
	HistoryEventBuffer = 16

	// DefaultHistorySize bounds a session's match history.
	DefaultHistorySize = 100

	// DefaultNamespace is used by tools that warm caches outside a session.
	DefaultNamespace = "default"

	// CloseTimeout bounds how long Close waits for session goroutines.
	CloseTimeout = 5 * time.Second
)

// Capture sources.
const (
	SourcePush   = "push"
	SourceScreen = "screen"
)

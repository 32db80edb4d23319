package hashcache

import "time"

const (
	// DefaultThreshold is the largest Hamming distance still treated as the same image.
	DefaultThreshold = 7

	// DefaultHashSize is the side of the average-hash grid (256 bits).
	DefaultHashSize = 16

	DefaultBatchSize  = 16
	DefaultFlushDelay = 500 * time.Millisecond
)

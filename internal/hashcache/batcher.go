package hashcache

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// BatchWriter persists a batch of entries.
type BatchWriter[T any] interface {
	WriteBatch([]Entry[T]) error
}

// Batcher accumulates cache entries and flushes them in batches so that Put
// never waits on disk. A single writer goroutine writes batches in order.
type Batcher[T any] struct {
	w          BatchWriter[T]
	maxSize    int
	flushDelay time.Duration

	mu      sync.Mutex
	items   []Entry[T]
	queue   [][]Entry[T]
	timer   *time.Timer
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// NewBatcher creates a batcher writing to w and starts its writer.
func NewBatcher[T any](w BatchWriter[T], maxSize int, flushDelay time.Duration) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = DefaultBatchSize
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	b := &Batcher[T]{
		w:          w,
		maxSize:    maxSize,
		flushDelay: flushDelay,
		items:      make([]Entry[T], 0, maxSize),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.run()
	return b
}

// Append queues e for the next flush.
func (b *Batcher[T]) Append(e Entry[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.items = append(b.items, e)
	if len(b.items) >= b.maxSize {
		b.flushLocked()
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushDelay, b.timerFlush)
	} else {
		b.timer.Reset(b.flushDelay)
	}
}

func (b *Batcher[T]) timerFlush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// flushLocked hands pending items to the writer without waiting for it.
func (b *Batcher[T]) flushLocked() {
	if b.stopped || len(b.items) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.queue = append(b.queue, b.items)
	b.items = make([]Entry[T], 0, b.maxSize)

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Batcher[T]) run() {
	defer close(b.done)
	for range b.wake {
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			items := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()
			b.write(items)
		}
	}
}

func (b *Batcher[T]) write(items []Entry[T]) {
	ctx, span := trace.StartSpan(context.Background(), "cache_batch_flush")
	defer span.End()
	span.SetAttr("count", len(items))

	log := trace.Logger(ctx)
	if err := b.w.WriteBatch(items); err != nil {
		span.SetAttr("error", err.Error())
		log.Warn("cache batch write failed", "error", err, "count", len(items))
		return
	}
	log.Debug("cache batch written", "count", len(items))
}

// Flush hands pending entries to the writer immediately.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Stop flushes remaining entries and waits for the writer to finish them.
// Later appends are dropped.
func (b *Batcher[T]) Stop() {
	b.mu.Lock()
	if !b.stopped {
		b.flushLocked()
		b.stopped = true
		close(b.wake)
	}
	b.mu.Unlock()
	<-b.done
}

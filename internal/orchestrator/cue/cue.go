// Package cue plays a voice-over clip when a new script line is matched.
package cue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/audio"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/pipeline"
)

// Trigger decides whether a match should fire a cue: the first matched id
// fires unless it was the last one played or the cooldown has not elapsed.
type Trigger struct {
	mu       sync.Mutex
	enabled  bool
	cooldown time.Duration
	lastID   int
	lastTime time.Time
}

// NewTrigger creates a trigger.
func NewTrigger(cooldown time.Duration, enabled bool) *Trigger {
	return &Trigger{enabled: enabled, cooldown: cooldown, lastID: -1}
}

// Check returns the id to play, if any, and records it as played.
func (t *Trigger) Check(matches []int) (int, bool) {
	if len(matches) == 0 {
		return 0, false
	}
	id := matches[0]

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled || id == t.lastID || time.Since(t.lastTime) < t.cooldown {
		return 0, false
	}
	t.lastID = id
	t.lastTime = time.Now()
	return id, true
}

// SetEnabled turns cues on or off.
func (t *Trigger) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
	slog.Info("voice cue state changed", "enabled", enabled)
}

func (t *Trigger) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Cue is a pipeline listener that plays clips on its own goroutine. A new cue
// interrupts the one playing.
type Cue struct {
	trigger *Trigger
	lib     *audio.Library
	player  audio.Player

	pending chan int
	done    chan struct{}
}

// New starts the playback worker; it stops when ctx is cancelled.
func New(ctx context.Context, trigger *Trigger, lib *audio.Library, player audio.Player) *Cue {
	c := &Cue{
		trigger: trigger,
		lib:     lib,
		player:  player,
		pending: make(chan int, 1),
		done:    make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// OnCommit fires a cue for the committed matches.
func (c *Cue) OnCommit(_ context.Context, st pipeline.RenderState) {
	id, ok := c.trigger.Check(st.Matches)
	if !ok {
		return
	}
	// Latest wins: replace a cue that has not started yet.
	select {
	case <-c.pending:
	default:
	}
	select {
	case c.pending <- id:
	default:
	}
}

func (c *Cue) run(ctx context.Context) {
	defer close(c.done)
	var cancel context.CancelFunc = func() {}
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.pending:
			cancel()
			wg.Wait()

			samples, ok, err := c.lib.Load(id)
			if err != nil {
				slog.Warn("voice cue load failed", "id", id, "error", err)
				continue
			}
			if !ok {
				slog.Debug("no voice cue for line", "id", id)
				continue
			}

			var playCtx context.Context
			playCtx, cancel = context.WithCancel(ctx)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := c.player.Play(playCtx, samples); err != nil && playCtx.Err() == nil {
					slog.Warn("voice cue playback failed", "id", id, "error", err)
				}
			}()
		}
	}
}

// Done is closed once the worker has stopped and playback has ended.
func (c *Cue) Done() <-chan struct{} { return c.done }

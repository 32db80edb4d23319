// Package orchestrator owns overlay sessions: each session wires a frame
// source, its own pipeline and caches, and the renderer that viewers read.
package orchestrator

import (
	"context"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/dialogue"
	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/history"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/pipeline"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/provider"
	"github.com/GriffinCanCode/dialogue-overlay/internal/screen"
	"github.com/GriffinCanCode/dialogue-overlay/internal/syncx"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// SessionOptions are chosen per session; zero values fall back to config.
type SessionOptions struct {
	Mode           string `json:"mode"`
	Language       string `json:"lang"`
	Translate      *bool  `json:"translate"`
	TargetLanguage string `json:"target_lang"`
	Source         string `json:"source"`
	Namespace      string `json:"namespace"`
}

// Session is one viewer's overlay: capture goroutine, processing goroutine,
// caches and committed state. Its slot, caches, state and history belong to
// it alone.
type Session struct {
	ID        string
	Namespace string
	Source    string
	Language  string
	Created   time.Time

	push     *screen.PushSource
	src      screen.Capturer
	slot     *screen.Slot
	pipe     *pipeline.Pipeline
	renderer *overlay.Renderer
	mode     *syncx.Guard[overlay.Mode]
	history  *history.Store
	script   *dialogue.Script

	caches  *caches
	ownText provider.TextProvider

	renderMu sync.Mutex
	rendered renderKey
	lastOut  *image.RGBA

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type renderKey struct {
	seq     uint64
	version uint64
	mode    overlay.Mode
}

func cachePaths(dir, namespace string) (recognition, translation string) {
	base := filepath.Join(dir, namespace)
	return filepath.Join(base, "recognition.jsonl"), filepath.Join(base, "translation.jsonl")
}

// start launches the capture and processing goroutines.
func (s *Session) start(ctx context.Context, loop *screen.Loop) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		loop.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.pipe.Run(ctx)
	}()
	trace.Logger(ctx).Info("session started", "source", s.Source, "namespace", s.Namespace, "mode", s.Mode())
}

// PushFrame offers a frame from the viewer. Only push sessions accept frames.
func (s *Session) PushFrame(img image.Image) error {
	if s.push == nil {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "session %s captures the screen and does not accept frames", s.ID)
	}
	if img == nil || img.Bounds().Empty() {
		return apperrors.New(apperrors.CodeInvalidArgument, "empty frame")
	}
	s.push.Push(img)
	return nil
}

// State returns the last committed render state without waiting.
func (s *Session) State() pipeline.RenderState { return s.pipe.State() }

// Mode returns the current render mode.
func (s *Session) Mode() overlay.Mode { return s.mode.Get() }

// SetMode changes how frames are rendered from now on. Switching to translate
// mode reprocesses the newest frame so its translation appears without a new
// capture.
func (s *Session) SetMode(m overlay.Mode) {
	if prev := s.mode.Get(); prev == m {
		return
	}
	s.mode.Set(m)
	if m == overlay.Translate {
		s.pipe.Refresh()
	}
}

// History returns the session's match history.
func (s *Session) History() *history.Store { return s.history }

// SlotStats reports frame slot counters.
func (s *Session) SlotStats() screen.SlotStats { return s.slot.Stats() }

// Render draws the committed overlay onto the newest frame. ok is false until
// a frame has been seen. Results are reused while nothing has changed.
func (s *Session) Render() (img *image.RGBA, ok bool) {
	st := s.pipe.State()
	frame, seq := st.Frame, st.FrameSeq
	if f, ok := s.pipe.Latest(); ok && f.Seq >= seq {
		frame, seq = f.Image, f.Seq
	}
	if frame == nil {
		return nil, false
	}

	key := renderKey{seq: seq, version: st.Version, mode: s.Mode()}
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	if s.lastOut != nil && s.rendered == key {
		return s.lastOut, true
	}
	out := s.renderer.Render(frame, st.Scene(), key.mode)
	s.rendered, s.lastOut = key, out
	return out, true
}

// OnCommit records matched lines in the history.
func (s *Session) OnCommit(_ context.Context, st pipeline.RenderState) {
	if len(st.Matches) == 0 {
		return
	}
	ev := history.Event{
		Time:        st.CommittedAt,
		Version:     st.Version,
		Matches:     st.Matches,
		Recognized:  st.Text,
		Translation: st.Translation,
	}
	if s.script != nil {
		for _, id := range st.Matches {
			if e, ok := s.script.Get(id); ok {
				ev.Lines = append(ev.Lines, history.Line{ID: e.ID, Speaker: e.Speaker, Text: e.Text})
			}
		}
	}
	s.history.Add(ev)
}

// Close stops the goroutines, flushes caches and releases the frame source.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(CloseTimeout):
			trace.Logger(context.Background()).Warn("session goroutines did not stop in time", "session", s.ID)
		}

		if s.caches != nil {
			s.caches.flush()
		}
		s.history.Close()
		if err := s.src.Close(); err != nil {
			trace.Logger(context.Background()).Warn("frame source close failed", "session", s.ID, "error", err)
		}
		s.closeText()
	})
}

// closeText stops a text provider built for this session alone.
func (s *Session) closeText() {
	c, ok := s.ownText.(provider.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		trace.Logger(context.Background()).Warn("text provider close failed", "session", s.ID, "error", err)
	}
}

// Package pipeline turns captured frames into committed overlay state:
// change detection, text recognition, region merging, dialogue matching and
// translation, with perceptual-hash caches in front of every provider call.
package pipeline

import (
	"context"
	"image"
	"strings"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/dialogue"
	"github.com/GriffinCanCode/dialogue-overlay/internal/hashcache"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/provider"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
	"github.com/GriffinCanCode/dialogue-overlay/internal/resilience"
	"github.com/GriffinCanCode/dialogue-overlay/internal/screen"
	"github.com/GriffinCanCode/dialogue-overlay/internal/syncx"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// DefaultInterval is how often Run polls the frame slot.
const DefaultInterval = 50 * time.Millisecond

// Config tunes a pipeline. Translate requests translations whatever the
// render mode; Deps.RenderMode adds them while the mode is overlay.Translate.
type Config struct {
	Language        string
	Translate       bool
	TargetLanguage  string
	Threshold       int
	HashSize        int
	ExcludeKeywords []string
	Interval        time.Duration
}

// Listener is told about every commit, on the processing goroutine.
type Listener interface {
	OnCommit(ctx context.Context, st RenderState)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, st RenderState)

func (f ListenerFunc) OnCommit(ctx context.Context, st RenderState) { f(ctx, st) }

// Deps are the collaborators of a pipeline. Nil caches and guards are
// replaced by in-memory caches and default guards; a nil Script disables
// matching and a nil Translator disables translation.
type Deps struct {
	Slot         *screen.Slot
	Text         provider.TextProvider
	Translator   provider.Translator
	Script       *dialogue.Script
	Matcher      *dialogue.Matcher
	Recognitions *hashcache.Cache[[]regions.Annotation]
	Translations *hashcache.Cache[string]
	TextGuard    *resilience.Guard
	TransGuard   *resilience.Guard
	Listeners    []Listener
	// RenderMode reports the session's current render mode.
	RenderMode func() overlay.Mode
}

// Pipeline processes one session's frames on a single goroutine.
type Pipeline struct {
	cfg      Config
	deps     Deps
	mode     dialogue.Mode
	detector *hashcache.Detector
	state    *syncx.Versioned[RenderState]
	latest   atomic.Pointer[screen.Frame]
}

// New creates a pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = hashcache.DefaultThreshold
	}
	if cfg.HashSize <= 0 {
		cfg.HashSize = hashcache.DefaultHashSize
	}
	if cfg.ExcludeKeywords == nil {
		cfg.ExcludeKeywords = provider.DefaultExcludeKeywords
	}
	if deps.Slot == nil {
		deps.Slot = &screen.Slot{}
	}
	if deps.Text == nil {
		deps.Text = provider.NewStub(provider.StubConfig{})
	}
	if deps.Matcher == nil {
		deps.Matcher = dialogue.NewMatcher(nil)
	}
	if deps.Recognitions == nil {
		deps.Recognitions = hashcache.New(hashcache.WithThreshold[[]regions.Annotation](cfg.Threshold))
	}
	if deps.Translations == nil {
		deps.Translations = hashcache.New(hashcache.WithThreshold[string](cfg.Threshold))
	}
	if deps.TextGuard == nil {
		deps.TextGuard = resilience.NewGuard("text-provider", resilience.DetectionConfig(), resilience.DefaultRetryConfig())
	}
	if deps.TransGuard == nil {
		deps.TransGuard = resilience.NewGuard("translator", resilience.DefaultConfig(), resilience.DefaultRetryConfig())
	}
	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		mode:     dialogue.ModeForLanguage(cfg.Language),
		detector: hashcache.NewDetector(cfg.Threshold, cfg.HashSize),
		state:    syncx.NewVersioned(RenderState{}),
	}
}

// State returns the last committed state. It never waits on processing.
func (p *Pipeline) State() RenderState {
	snap := p.state.Load()
	st := snap.Value
	st.Version = snap.Version
	return st
}

// Latest returns the most recent frame taken from the slot, processed or not.
func (p *Pipeline) Latest() (screen.Frame, bool) {
	f := p.latest.Load()
	if f == nil {
		return screen.Frame{}, false
	}
	return *f, true
}

// Run calls Step until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step processes the newest frame, if any. It reports whether a new state was
// committed. Unchanged frames and provider failures leave the state as is.
func (p *Pipeline) Step(ctx context.Context) bool {
	f, ok := p.deps.Slot.Take()
	if !ok {
		return false
	}
	p.latest.Store(&f)

	if !p.detector.Changed(f.Image) && !p.translationPending() {
		return false
	}

	ctx, span := trace.StartSpan(ctx, "pipeline.step")
	defer span.End()
	span.SetAttr("frame_seq", f.Seq)
	log := trace.Logger(ctx)

	st, err := p.process(ctx, f)
	if err != nil {
		// Forget the reference so the same scene is retried once providers recover.
		p.detector.Reset()
		log.Warn("frame processing failed", "seq", f.Seq, "error", err)
		return false
	}

	st.Version = p.state.Commit(st)
	span.SetAttr("version", st.Version)
	log.Debug("state committed", "version", st.Version, "regions", len(st.Regions), "matches", st.Matches, "duration", span.Duration())

	for _, l := range p.deps.Listeners {
		l.OnCommit(ctx, st)
	}
	return true
}

func (p *Pipeline) process(ctx context.Context, f screen.Frame) (RenderState, error) {
	st := RenderState{Frame: f.Image, FrameSeq: f.Seq, Matches: []int{}}

	hasText, err := resilience.Call(ctx, p.deps.TextGuard, func(ctx context.Context) (bool, error) {
		return p.deps.Text.HasText(ctx, f.Image)
	})
	if err != nil {
		return st, err
	}
	if !hasText {
		st.CommittedAt = time.Now()
		return st, nil
	}

	anns, err := p.recognize(ctx, f.Image)
	if err != nil {
		return st, err
	}
	anns = provider.FilterExcluded(anns, p.cfg.ExcludeKeywords)

	st.Regions = regions.Merge(anns)
	st.Text = regions.Text(st.Regions)
	st.Colors = overlay.DeriveColors(f.Image, st.Regions)
	if p.deps.Script != nil && st.Text != "" {
		st.Matches = p.deps.Matcher.FindClosest(st.Text, p.deps.Script, p.mode)
	}

	if p.wantsTranslation() && len(st.Regions) > 0 {
		st.Translation, err = p.translate(ctx, f.Image, st)
		if err != nil {
			return st, err
		}
		st.Translated = true
	}
	st.CommittedAt = time.Now()
	return st, nil
}

func (p *Pipeline) recognize(ctx context.Context, img image.Image) ([]regions.Annotation, error) {
	h, err := hashcache.Compute(img, p.cfg.HashSize)
	if err == nil {
		if e, dist, ok := p.deps.Recognitions.Nearest(h); ok {
			trace.Logger(ctx).Debug("recognition cache hit", "distance", dist, "index", e.Index)
			return e.Payload, nil
		}
	}

	anns, err := resilience.Call(ctx, p.deps.TextGuard, func(ctx context.Context) ([]regions.Annotation, error) {
		boxes, err := p.deps.Text.Detect(ctx, img)
		if err != nil || len(boxes) == 0 {
			return []regions.Annotation{}, err
		}
		return p.deps.Text.Recognize(ctx, img, provider.Hints{Language: p.cfg.Language, Boxes: boxes})
	})
	if err != nil {
		return nil, err
	}
	if h != nil {
		p.deps.Recognitions.Put(h, anns)
	}
	return anns, nil
}

func (p *Pipeline) wantsTranslation() bool {
	if p.deps.Translator == nil {
		return false
	}
	return p.cfg.Translate || (p.deps.RenderMode != nil && p.deps.RenderMode() == overlay.Translate)
}

// translationPending reports whether the committed state has text that still
// needs a translation, as after a switch into translate mode.
func (p *Pipeline) translationPending() bool {
	if !p.wantsTranslation() {
		return false
	}
	st := p.state.Load().Value
	return !st.Translated && len(st.Regions) > 0
}

// translationKey stacks the region crops into one image, so the same lines
// over a different background still hit.
func (p *Pipeline) translationKey(img image.Image, regs []regions.Region) hashcache.Hash {
	boxes := make([]image.Rectangle, 0, len(regs))
	for _, r := range regs {
		boxes = append(boxes, r.Image())
	}
	crops := imageutil.CropBoxes(img, boxes)
	if len(crops) == 0 {
		return nil
	}
	h, err := hashcache.Compute(imageutil.Combine(crops, imageutil.Vertical), p.cfg.HashSize)
	if err != nil {
		return nil
	}
	return h
}

func (p *Pipeline) translate(ctx context.Context, img image.Image, st RenderState) (string, error) {
	h := p.translationKey(img, st.Regions)
	if h != nil {
		if e, _, ok := p.deps.Translations.Nearest(h); ok {
			return e.Payload, nil
		}
	}

	source := p.sourceText(st)
	out, err := resilience.Call(ctx, p.deps.TransGuard, func(ctx context.Context) (string, error) {
		return p.deps.Translator.Translate(ctx, source, p.cfg.TargetLanguage)
	})
	if err != nil {
		return "", err
	}
	if h != nil {
		p.deps.Translations.Put(h, out)
	}
	return out, nil
}

// sourceText prefers the matched script lines, which are free of recognition
// errors, over the raw recognized text.
func (p *Pipeline) sourceText(st RenderState) string {
	if p.deps.Script == nil || len(st.Matches) == 0 {
		return st.Text
	}
	lines := make([]string, 0, len(st.Matches))
	for _, id := range st.Matches {
		if e, ok := p.deps.Script.Get(id); ok {
			lines = append(lines, e.Speaker+" : "+e.Text)
		}
	}
	if len(lines) == 0 {
		return st.Text
	}
	return strings.Join(lines, "\n")
}

// Reset forgets the reference frame so the next frame is processed.
func (p *Pipeline) Reset() { p.detector.Reset() }

// Refresh offers the newest frame again, so a mode change that needs more
// work is applied without waiting for the next capture.
func (p *Pipeline) Refresh() {
	if f := p.latest.Load(); f != nil {
		p.deps.Slot.Put(f.Image)
	}
}

// Slot returns the frame slot the pipeline reads from.
func (p *Pipeline) Slot() *screen.Slot { return p.deps.Slot }

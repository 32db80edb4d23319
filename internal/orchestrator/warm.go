package orchestrator

import (
	"context"
	"image"

	"github.com/GriffinCanCode/dialogue-overlay/internal/config"
	"github.com/GriffinCanCode/dialogue-overlay/internal/dialogue"
	"github.com/GriffinCanCode/dialogue-overlay/internal/orchestrator/pipeline"
	"github.com/GriffinCanCode/dialogue-overlay/internal/screen"
)

// Warmer runs previously captured frames through a pipeline with translation
// enabled, filling a namespace's caches ahead of play. It must not share a
// namespace with a live session.
type Warmer struct {
	slot   *screen.Slot
	pipe   *pipeline.Pipeline
	caches *caches
}

// NewWarmer opens the caches of namespace.
func NewWarmer(ctx context.Context, cfg *config.Config, shared Shared, namespace string) (*Warmer, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c, err := openCaches(cfg, namespace)
	if err != nil {
		return nil, err
	}
	slot := &screen.Slot{}
	pipe := pipeline.New(pipeline.Config{
		Language:        cfg.Language,
		Translate:       true,
		TargetLanguage:  cfg.Pipeline.TargetLanguage,
		Threshold:       cfg.Pipeline.HashThreshold,
		HashSize:        cfg.Pipeline.HashSize,
		ExcludeKeywords: cfg.Pipeline.ExcludeKeywords,
	}, pipeline.Deps{
		Slot:         slot,
		Text:         shared.Text,
		Translator:   shared.Translator,
		Script:       shared.Script,
		Matcher:      dialogue.NewMatcher(cfg.Pipeline.Noise),
		Recognitions: c.recognitions,
		Translations: c.translations,
		TextGuard:    newGuard(ctx, cfg, "recognition"),
		TransGuard:   newGuard(ctx, cfg, "translation"),
	})
	return &Warmer{slot: slot, pipe: pipe, caches: c}, nil
}

// Feed processes one frame synchronously. It reports whether the frame
// produced a new state; frames too similar to the previous one are skipped.
func (w *Warmer) Feed(ctx context.Context, img image.Image) (pipeline.RenderState, bool) {
	w.slot.Put(img)
	if !w.pipe.Step(ctx) {
		return pipeline.RenderState{}, false
	}
	return w.pipe.State(), true
}

// Close flushes the caches to disk.
func (w *Warmer) Close() { w.caches.flush() }

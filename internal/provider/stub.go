package provider

import (
	"context"
	"image"

	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// StubConfig fixes what a Stub returns.
type StubConfig struct {
	Annotations []regions.Annotation `mapstructure:"annotations"`
	Translation string               `mapstructure:"translation"`
}

// Stub returns canned results. It reports text whenever it has annotations.
type Stub struct {
	cfg StubConfig
}

func NewStub(cfg StubConfig) *Stub { return &Stub{cfg: cfg} }

func (s *Stub) HasText(context.Context, image.Image) (bool, error) {
	return len(s.cfg.Annotations) > 0, nil
}

func (s *Stub) Detect(context.Context, image.Image) ([]image.Rectangle, error) {
	out := make([]image.Rectangle, 0, len(s.cfg.Annotations))
	for _, a := range s.cfg.Annotations {
		if r, ok := a.Rect(); ok {
			out = append(out, r.Image())
		}
	}
	return out, nil
}

func (s *Stub) Recognize(_ context.Context, _ image.Image, hints Hints) ([]regions.Annotation, error) {
	return withinBoxes(append([]regions.Annotation(nil), s.cfg.Annotations...), hints.Boxes), nil
}

// Translate returns the configured translation, or text itself when none is set.
func (s *Stub) Translate(_ context.Context, text, _ string) (string, error) {
	if s.cfg.Translation != "" {
		return s.cfg.Translation, nil
	}
	return text, nil
}

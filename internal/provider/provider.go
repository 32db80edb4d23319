// Package provider defines the text recognition and translation capabilities
// the pipeline depends on, and their local, cloud, remote and stub variants.
package provider

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/mitchellh/mapstructure"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// Hints narrow recognition. Boxes, when set, are the text boxes Detect found;
// providers read only those areas. Annotations stay in frame coordinates.
type Hints struct {
	Language string
	Boxes    []image.Rectangle
}

// withinBoxes keeps the annotations that touch at least one box. No boxes
// keeps everything.
func withinBoxes(anns []regions.Annotation, boxes []image.Rectangle) []regions.Annotation {
	if len(boxes) == 0 {
		return anns
	}
	out := anns[:0:0]
	for _, a := range anns {
		r, ok := a.Rect()
		if !ok {
			continue
		}
		for _, b := range boxes {
			if r.Image().Overlaps(b) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// boxCoords flattens boxes to [x1, y1, x2, y2] with exclusive maxima.
func boxCoords(boxes []image.Rectangle) [][4]int {
	if len(boxes) == 0 {
		return nil
	}
	out := make([][4]int, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y})
	}
	return out
}

// TextProvider finds and reads text in images.
type TextProvider interface {
	HasText(ctx context.Context, img image.Image) (bool, error)
	Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error)
	Recognize(ctx context.Context, img image.Image, hints Hints) ([]regions.Annotation, error)
}

// Translator translates text into a target language code.
type Translator interface {
	Translate(ctx context.Context, text, lang string) (string, error)
}

// Closer is implemented by providers holding processes or connections.
type Closer interface {
	Close() error
}

// Kinds of provider.
const (
	KindStub   = "stub"
	KindLocal  = "local"
	KindCloud  = "cloud"
	KindRemote = "remote"
)

// Config selects a provider and carries its kind-specific settings.
type Config struct {
	Kind     string         `mapstructure:"kind"`
	Settings map[string]any `mapstructure:"settings"`
}

// NewTextProvider builds the TextProvider selected by cfg.
func NewTextProvider(cfg Config) (TextProvider, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindStub:
		var s StubConfig
		if err := decode(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return NewStub(s), nil
	case KindLocal:
		var l LocalConfig
		if err := decode(cfg.Settings, &l); err != nil {
			return nil, err
		}
		return NewLocal(l)
	case KindCloud:
		var c VisionConfig
		if err := decode(cfg.Settings, &c); err != nil {
			return nil, err
		}
		return NewVision(c)
	case KindRemote:
		var r RemoteConfig
		if err := decode(cfg.Settings, &r); err != nil {
			return nil, err
		}
		return NewRemote(r)
	}
	return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown text provider %q", cfg.Kind)
}

// NewTranslator builds the Translator selected by cfg.
func NewTranslator(cfg Config) (Translator, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", KindStub:
		var s StubConfig
		if err := decode(cfg.Settings, &s); err != nil {
			return nil, err
		}
		return NewStub(s), nil
	case KindCloud:
		var c ChatConfig
		if err := decode(cfg.Settings, &c); err != nil {
			return nil, err
		}
		return NewChat(c)
	case KindRemote:
		var r RemoteConfig
		if err := decode(cfg.Settings, &r); err != nil {
			return nil, err
		}
		return NewRemote(r)
	}
	return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown translator %q", cfg.Kind)
}

func decode(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "provider settings")
	}
	return nil
}

// DefaultExcludeKeywords drop emulator overlay text from recognition results.
var DefaultExcludeKeywords = []string{"retroarch", "retronrch"}

// FilterExcluded removes annotations whose text contains any keyword,
// case-insensitively.
func FilterExcluded(anns []regions.Annotation, keywords []string) []regions.Annotation {
	if len(keywords) == 0 {
		return anns
	}
	out := anns[:0:0]
	for _, a := range anns {
		lower := strings.ToLower(a.Text)
		skip := false
		for _, k := range keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, a)
		}
	}
	return out
}

var languageNames = map[string]string{"en": "English", "jp": "Japanese"}

// LanguageName maps a language code to the name used in prompts. Unknown codes
// are returned unchanged.
func LanguageName(code string) string {
	if n, ok := languageNames[strings.ToLower(code)]; ok {
		return n
	}
	return code
}

// TranslationPrompt is the user prompt sent to chat translators.
func TranslationPrompt(text, lang string) string {
	return fmt.Sprintf("Translate this sentence into %s.\n%s", LanguageName(lang), text)
}

// StripFences unwraps a reply delimited by ``` fences, with an optional
// language tag after the opening fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		tag, rest := strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		if tag != "" && rest != "" && !strings.ContainsAny(tag, " \t") {
			s = rest
		}
	}
	return strings.TrimSpace(s)
}

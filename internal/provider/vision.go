package provider

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// VisionConfig configures the cloud text detection client.
type VisionConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Quality int           `mapstructure:"quality"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Vision reads text through a Cloud Vision style images:annotate endpoint.
type Vision struct {
	cfg    VisionConfig
	client *http.Client

	mu   sync.Mutex
	last visionResult
}

// visionResult is the latest annotate response. HasText, Detect and
// Recognize on one frame all need it, so they share a request.
type visionResult struct {
	ok   bool
	sum  [sha256.Size]byte
	lang string
	anns []regions.Annotation
}

func NewVision(cfg VisionConfig) (*Vision, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeConfigInvalid, "cloud vision: api_key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://vision.googleapis.com/v1"
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 90
	}
	return &Vision{cfg: cfg, client: httpClient(cfg.Timeout)}, nil
}

type visionVertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type visionResponse struct {
	Responses []struct {
		TextAnnotations []struct {
			Description  string `json:"description"`
			BoundingPoly struct {
				Vertices []visionVertex `json:"vertices"`
			} `json:"boundingPoly"`
		} `json:"textAnnotations"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"responses"`
}

// visionLanguage maps local language codes to BCP-47 hints.
func visionLanguage(code string) string {
	if strings.EqualFold(code, "jp") {
		return "ja"
	}
	return code
}

func (v *Vision) Recognize(ctx context.Context, img image.Image, hints Hints) ([]regions.Annotation, error) {
	anns, err := v.annotate(ctx, img, hints.Language)
	if err != nil {
		return nil, err
	}
	return withinBoxes(anns, hints.Boxes), nil
}

// annotate returns word annotations for img. An empty lang reuses the last
// result for the same image whatever language it was requested with.
func (v *Vision) annotate(ctx context.Context, img image.Image, lang string) ([]regions.Annotation, error) {
	data, err := imageutil.EncodeJPEG(img, v.cfg.Quality)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeProviderFailure, "encode frame")
	}
	sum := sha256.Sum256(data)
	v.mu.Lock()
	last := v.last
	v.mu.Unlock()
	if last.ok && last.sum == sum && (lang == "" || last.lang == lang) {
		return append([]regions.Annotation(nil), last.anns...), nil
	}

	req := map[string]any{
		"image":    map[string]string{"content": base64.StdEncoding.EncodeToString(data)},
		"features": []map[string]string{{"type": "TEXT_DETECTION"}},
	}
	if lang != "" {
		req["imageContext"] = map[string]any{"languageHints": []string{visionLanguage(lang)}}
	}

	var resp visionResponse
	url := strings.TrimRight(v.cfg.BaseURL, "/") + "/images:annotate?key=" + v.cfg.APIKey
	if err := postJSON(ctx, v.client, url, nil, map[string]any{"requests": []any{req}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return nil, nil
	}
	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return nil, apperrors.New(apperrors.CodeProviderFailure, r.Error.Message)
	}

	// The first annotation aggregates the whole image; the rest are words.
	var out []regions.Annotation
	for i, ta := range r.TextAnnotations {
		if i == 0 && len(r.TextAnnotations) > 1 {
			continue
		}
		box := make([]regions.Point, 0, len(ta.BoundingPoly.Vertices))
		for _, vx := range ta.BoundingPoly.Vertices {
			box = append(box, regions.Point{X: vx.X, Y: vx.Y})
		}
		out = append(out, regions.Annotation{Box: box, Text: ta.Description, Confidence: 1})
	}
	v.mu.Lock()
	v.last = visionResult{ok: true, sum: sum, lang: lang, anns: out}
	v.mu.Unlock()
	return append([]regions.Annotation(nil), out...), nil
}

func (v *Vision) HasText(ctx context.Context, img image.Image) (bool, error) {
	anns, err := v.annotate(ctx, img, "")
	return len(anns) > 0, err
}

func (v *Vision) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	anns, err := v.annotate(ctx, img, "")
	if err != nil {
		return nil, err
	}
	out := make([]image.Rectangle, 0, len(anns))
	for _, a := range anns {
		if r, ok := a.Rect(); ok {
			out = append(out, r.Image())
		}
	}
	return out, nil
}

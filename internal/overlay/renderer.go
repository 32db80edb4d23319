// Package overlay draws recognized regions and translations onto frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// Mode selects what Render draws.
type Mode int

const (
	// Passthrough draws the raw boxes and recognized text without blur.
	Passthrough Mode = iota
	// Debug draws boxes and text in contrasting colors plus the dialogue bounds.
	Debug
	// Translate blurs the original text and draws the translation over it.
	Translate
)

func (m Mode) String() string {
	switch m {
	case Passthrough:
		return "passthrough"
	case Debug:
		return "debug"
	case Translate:
		return "translate"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passthrough", "":
		return Passthrough, nil
	case "debug":
		return Debug, nil
	case "translate":
		return Translate, nil
	}
	return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown render mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

var (
	boxColor   = color.RGBA{255, 0, 0, 255}
	labelColor = color.RGBA{255, 255, 0, 255}
	boundColor = color.RGBA{0, 255, 255, 255}
)

// Options tune translation layout.
type Options struct {
	InitialFontSize int
	Margin          int
	HeightBudget    int
}

const (
	DefaultInitialFontSize = 35
	DefaultMargin          = 20
	DefaultHeightBudget    = 500
)

func (o Options) withDefaults() Options {
	if o.InitialFontSize <= 0 {
		o.InitialFontSize = DefaultInitialFontSize
	}
	if o.Margin <= 0 {
		o.Margin = DefaultMargin
	}
	if o.HeightBudget <= 0 {
		o.HeightBudget = DefaultHeightBudget
	}
	return o
}

// Renderer composes output frames. It keeps no per-frame state and may be
// shared by the goroutines of one session.
type Renderer struct {
	face *Typeface
	opts Options
}

// NewRenderer creates a renderer drawing translations with face.
func NewRenderer(face *Typeface, opts Options) *Renderer {
	return &Renderer{face: face, opts: opts.withDefaults()}
}

// Scene is everything Render needs from a committed pipeline state.
type Scene struct {
	Regions     []regions.Region
	Translation string
	Colors      Colors
}

// CalculateFontSize returns the largest font size in [1, initialMax] at which
// text fits a width x height box. ok is false for a box without area.
func (r *Renderer) CalculateFontSize(width, height int, text string, initialMax int) (int, bool) {
	return r.face.FontSize(width, height, text, initialMax)
}

// AdjustTranslationText wraps text to width at size without splitting words.
func (r *Renderer) AdjustTranslationText(text string, size, width int) []string {
	return r.face.Wrap(size, text, width)
}

// Render draws scene onto a copy of frame.
func (r *Renderer) Render(frame image.Image, scene Scene, mode Mode) *image.RGBA {
	out := imageutil.Clone(frame)
	if len(scene.Regions) == 0 {
		return out
	}

	switch mode {
	case Translate:
		r.drawTranslation(out, scene)
	case Debug:
		drawBoxes(out, scene.Regions)
		anchor, extent, _ := regions.Bounds(scene.Regions)
		strokeRect(out, image.Rectangle{Min: anchor, Max: extent.Add(image.Pt(1, 1))}, boundColor, 1)
		drawLabel(out, image.Pt(anchor.X, extent.Y+16), fmt.Sprintf("%d regions", len(scene.Regions)), boundColor)
	default:
		drawBoxes(out, scene.Regions)
	}
	return out
}

func (r *Renderer) drawTranslation(out *image.RGBA, scene Scene) {
	rects := make([]image.Rectangle, len(scene.Regions))
	for i, reg := range scene.Regions {
		rects[i] = reg.Image()
	}
	blurred := imageutil.Blur(out)
	mask := imageutil.MaskRects(out.Bounds(), rects)
	draw.DrawMask(out, out.Bounds(), blurred, out.Bounds().Min, mask, out.Bounds().Min, draw.Over)

	if strings.TrimSpace(scene.Translation) == "" {
		return
	}

	anchor, _, _ := regions.Bounds(scene.Regions)
	width := out.Bounds().Dx() - r.opts.Margin - anchor.X
	size, ok := r.CalculateFontSize(width, r.opts.HeightBudget, scene.Translation, r.opts.InitialFontSize)
	if !ok {
		err := apperrors.New(apperrors.CodeRenderFailure, "no room for translation").
			WithMetadata("width", fmt.Sprint(width))
		slog.Debug("skipping translation overlay", "error", err)
		return
	}

	lines := r.face.Wrap(size, scene.Translation, width)
	r.drawLines(out, anchor, size, lines, scene.Colors.TextOrDefault())
}

func (r *Renderer) drawLines(dst draw.Image, at image.Point, size int, lines []string, c color.Color) {
	r.face.mu.Lock()
	defer r.face.mu.Unlock()
	face := r.face.faceLocked(size)
	m := face.Metrics()
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face}
	baseline := fixed.I(at.Y) + m.Ascent
	for _, line := range lines {
		d.Dot = fixed.Point26_6{X: fixed.I(at.X), Y: baseline}
		d.DrawString(line)
		baseline += m.Height
	}
}

func drawBoxes(dst draw.Image, regs []regions.Region) {
	for _, reg := range regs {
		strokeRect(dst, reg.Image(), boxColor, 2)
		drawLabel(dst, image.Pt(reg.X1, reg.Y1-10), reg.Text, labelColor)
	}
}

// drawLabel writes s with its baseline at p using the fixed 7x13 bitmap face.
func drawLabel(dst draw.Image, p image.Point, s string, c color.Color) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(p.X, max(p.Y, basicfont.Face7x13.Ascent)),
	}
	d.DrawString(s)
}

// strokeRect outlines r with lines of width w drawn inward.
func strokeRect(dst draw.Image, r image.Rectangle, c color.Color, w int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

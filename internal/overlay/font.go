package overlay

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Typeface measures and renders one font at many sizes. Faces are cached per
// size; opentype faces are not safe for concurrent use, so every operation
// holds the mutex.
type Typeface struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[int]font.Face
}

// NewTypeface parses a TrueType/OpenType file. An empty path selects Go Regular.
func NewTypeface(path string) (*Typeface, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		data = b
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Typeface{font: f, faces: make(map[int]font.Face)}, nil
}

func (t *Typeface) faceLocked(size int) font.Face {
	if f, ok := t.faces[size]; ok {
		return f
	}
	f, err := opentype.NewFace(t.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		slog.Warn("font face unavailable, using fixed bitmap face", "size", size, "error", err)
		return basicfont.Face7x13
	}
	t.faces[size] = f
	return f
}

// Width returns the advance width of s in whole pixels, rounded up.
func (t *Typeface) Width(size int, s string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return font.MeasureString(t.faceLocked(size), s).Ceil()
}

// LineHeight returns the distance between baselines at size.
func (t *Typeface) LineHeight(size int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.faceLocked(size).Metrics().Height.Ceil()
}

// Wrap breaks text greedily at word boundaries so that every line measures at
// most width at size. Words are never split: a word wider than width gets a
// line of its own. Existing newlines are kept as hard breaks.
func (t *Typeface) Wrap(size int, text string, width int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	face := t.faceLocked(size)
	limit := fixed.I(width)

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			candidate := cur + " " + w
			if font.MeasureString(face, candidate) > limit {
				lines = append(lines, cur)
				cur = w
				continue
			}
			cur = candidate
		}
		lines = append(lines, cur)
	}
	return lines
}

// fits reports whether text wrapped at size fits in a width x height box.
func (t *Typeface) fits(size int, text string, width, height int) bool {
	lines := t.Wrap(size, text, width)
	if len(lines)*t.LineHeight(size) > height {
		return false
	}
	for _, l := range lines {
		if t.Width(size, l) > width {
			return false
		}
	}
	return true
}

// FontSize finds the largest size in [1, initialMax] at which text fits in a
// width x height box. ok is false when the box has no area; callers then skip
// the text overlay. When even size 1 overflows, 1 is returned.
func (t *Typeface) FontSize(width, height int, text string, initialMax int) (int, bool) {
	if width <= 0 || height <= 0 || initialMax <= 0 {
		return 0, false
	}
	lo, hi, best := 1, initialMax, 1
	for lo <= hi {
		mid := (lo + hi) / 2
		if t.fits(mid, text, width, height) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, true
}

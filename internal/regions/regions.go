// Package regions turns raw text annotations into non-overlapping text regions.
package regions

import (
	"image"
	"log/slog"
	"math"
	"strings"
)

// Point is a detection corner in frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Annotation is one recognized text fragment. Box holds either two corners
// (top-left, bottom-right) or a four-point quad clockwise from top-left.
type Annotation struct {
	Box        []Point `json:"box"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// RectAnnotation builds an Annotation from an axis-aligned rectangle.
func RectAnnotation(x1, y1, x2, y2 int, text string) Annotation {
	return Annotation{
		Box:  []Point{{float64(x1), float64(y1)}, {float64(x2), float64(y2)}},
		Text: text,
	}
}

// Rect is an inclusive axis-aligned box: (X1,Y1) top-left, (X2,Y2) bottom-right.
type Rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the rect has positive area and is not inverted.
func (r Rect) Valid() bool { return r.X2 > r.X1 && r.Y2 > r.Y1 }

// Overlaps reports whether r and o intersect; shared edges count.
func (r Rect) Overlaps(o Rect) bool {
	return !(r.X2 < o.X1 || o.X2 < r.X1 || r.Y2 < o.Y1 || o.Y2 < r.Y1)
}

// Union returns the smallest rect containing both.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
		X2: max(r.X2, o.X2),
		Y2: max(r.Y2, o.Y2),
	}
}

// Image converts to an image.Rectangle; Max is exclusive so it is shifted by one.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2+1, r.Y2+1)
}

// Rect normalizes the annotation box. ok is false when the box is degenerate:
// too few points, non-finite coordinates, or corners given in inverted order.
func (a Annotation) Rect() (Rect, bool) {
	if len(a.Box) != 2 && len(a.Box) != 4 {
		return Rect{}, false
	}
	for _, p := range a.Box {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return Rect{}, false
		}
	}

	tl := a.Box[0]
	br := a.Box[len(a.Box)-1]
	if len(a.Box) == 4 {
		br = a.Box[2]
	}
	if br.X < tl.X || br.Y < tl.Y {
		return Rect{}, false
	}

	minX, minY := tl.X, tl.Y
	maxX, maxY := br.X, br.Y
	for _, p := range a.Box {
		minX, minY = math.Min(minX, p.X), math.Min(minY, p.Y)
		maxX, maxY = math.Max(maxX, p.X), math.Max(maxY, p.Y)
	}

	r := Rect{X1: int(minX), Y1: int(minY), X2: int(maxX), Y2: int(maxY)}
	return r, r.Valid()
}

// Region is a merged text box.
type Region struct {
	Rect
	Text string `json:"text"`
}

// Bounds returns the anchor (min top-left) and extent (max bottom-right) over regs.
func Bounds(regs []Region) (anchor, extent image.Point, ok bool) {
	if len(regs) == 0 {
		return image.Point{}, image.Point{}, false
	}
	anchor = image.Pt(regs[0].X1, regs[0].Y1)
	extent = image.Pt(regs[0].X2, regs[0].Y2)
	for _, r := range regs[1:] {
		anchor.X, anchor.Y = min(anchor.X, r.X1), min(anchor.Y, r.Y1)
		extent.X, extent.Y = max(extent.X, r.X2), max(extent.Y, r.Y2)
	}
	return anchor, extent, true
}

// Text joins region texts in order with single spaces.
func Text(regs []Region) string {
	parts := make([]string, 0, len(regs))
	for _, r := range regs {
		if r.Text != "" {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Merge drops degenerate annotations, then unions overlapping rects until no
// pair overlaps. The first overlapping pair found in scan order is merged first.
// Each resulting region's text is the space-joined text of every contributing
// annotation in input order.
func Merge(anns []Annotation) []Region {
	valid := make([]Annotation, 0, len(anns))
	rects := make([]Rect, 0, len(anns))
	for i, a := range anns {
		r, ok := a.Rect()
		if !ok {
			slog.Debug("dropping degenerate annotation", "index", i, "text", a.Text, "box", a.Box)
			continue
		}
		valid = append(valid, a)
		rects = append(rects, r)
	}

	merged := mergeRects(append([]Rect(nil), rects...))

	out := make([]Region, 0, len(merged))
	for _, m := range merged {
		var parts []string
		for i, r := range rects {
			if m.Overlaps(r) && valid[i].Text != "" {
				parts = append(parts, valid[i].Text)
			}
		}
		out = append(out, Region{Rect: m, Text: strings.Join(parts, " ")})
	}
	return out
}

func mergeRects(rects []Rect) []Rect {
	for {
		i, j, found := firstOverlap(rects)
		if !found {
			return rects
		}
		rects[i] = rects[i].Union(rects[j])
		rects = append(rects[:j], rects[j+1:]...)
	}
}

func firstOverlap(rects []Rect) (int, int, bool) {
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			if rects[i].Overlaps(rects[j]) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

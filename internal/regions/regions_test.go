package regions

import (
	"math"
	"math/rand"
	"testing"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{"disjoint horizontally", Rect{0, 0, 10, 10}, Rect{11, 0, 20, 10}, false},
		{"disjoint vertically", Rect{0, 0, 10, 10}, Rect{0, 11, 10, 20}, false},
		{"shared edge", Rect{0, 0, 10, 10}, Rect{10, 0, 20, 10}, true},
		{"contained", Rect{0, 0, 100, 100}, Rect{10, 10, 20, 20}, true},
		{"partial", Rect{0, 0, 10, 10}, Rect{5, 5, 15, 15}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnotationRect(t *testing.T) {
	tests := []struct {
		name   string
		box    []Point
		want   Rect
		wantOK bool
	}{
		{"two corners", []Point{{934, 54}, {1177, 129}}, Rect{934, 54, 1177, 129}, true},
		{"quad", []Point{{10, 10}, {50, 12}, {52, 40}, {8, 38}}, Rect{8, 10, 52, 40}, true},
		{"inverted", []Point{{100, 100}, {10, 10}}, Rect{}, false},
		{"zero height", []Point{{10, 10}, {50, 10}}, Rect{}, false},
		{"single point", []Point{{10, 10}}, Rect{}, false},
		{"nan", []Point{{math.NaN(), 0}, {10, 10}}, Rect{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Annotation{Box: tt.box}.Rect()
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Rect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMergeCombinesOverlapping(t *testing.T) {
	anns := []Annotation{
		RectAnnotation(0, 0, 50, 20, "Crew:"),
		RectAnnotation(45, 0, 100, 20, "Why"),
		RectAnnotation(300, 300, 350, 320, "HP"),
	}
	got := Merge(anns)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Rect != (Rect{0, 0, 100, 20}) || got[0].Text != "Crew: Why" {
		t.Errorf("region 0 = %+v", got[0])
	}
	if got[1].Text != "HP" {
		t.Errorf("region 1 = %+v", got[1])
	}
}

func TestMergeChainsToFixedPoint(t *testing.T) {
	// c only touches the union of a and b, not either one alone.
	anns := []Annotation{
		RectAnnotation(0, 0, 10, 10, "a"),
		RectAnnotation(100, 0, 110, 10, "c"),
		RectAnnotation(5, 5, 60, 40, "b"),
		RectAnnotation(55, 35, 101, 50, "d"),
	}
	got := Merge(anns)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1: %+v", len(got), got)
	}
	if got[0].Text != "a c b d" {
		t.Errorf("Text = %q, want input order", got[0].Text)
	}
	if got[0].Rect != (Rect{0, 0, 110, 50}) {
		t.Errorf("Rect = %+v", got[0].Rect)
	}
}

func TestMergeDropsDegenerate(t *testing.T) {
	anns := []Annotation{
		RectAnnotation(10, 10, 60, 30, "keep"),
		RectAnnotation(90, 90, 20, 20, "inverted"),
		{Box: []Point{{1, 1}}, Text: "short"},
	}
	got := Merge(anns)
	if len(got) != 1 || got[0].Text != "keep" {
		t.Errorf("Merge() = %+v", got)
	}
}

func TestMergeOutputNeverOverlaps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n := rng.Intn(12)
		anns := make([]Annotation, n)
		for i := range anns {
			x, y := rng.Intn(400), rng.Intn(300)
			anns[i] = RectAnnotation(x, y, x+1+rng.Intn(80), y+1+rng.Intn(40), "w")
		}
		regs := Merge(anns)
		for i := range regs {
			for j := i + 1; j < len(regs); j++ {
				if regs[i].Overlaps(regs[j].Rect) {
					t.Fatalf("round %d: regions %d and %d overlap: %+v %+v", round, i, j, regs[i], regs[j])
				}
			}
		}
	}
}

func TestMergeIdempotent(t *testing.T) {
	anns := []Annotation{
		RectAnnotation(934, 54, 1177, 129, "#rUali"),
		RectAnnotation(984, 710, 1206, 782, "HP 200-"),
		RectAnnotation(85, 721, 457, 785, "7D-9-f_J"),
		RectAnnotation(478, 732, 538, 780, "3"),
		RectAnnotation(626, 732, 768, 780, "tvl"),
		RectAnnotation(1210, 730, 1350, 782, "200"),
	}
	first := Merge(anns)
	if len(first) != len(anns) {
		t.Fatalf("disjoint input changed size: %d", len(first))
	}

	again := make([]Annotation, len(first))
	for i, r := range first {
		again[i] = RectAnnotation(r.X1, r.Y1, r.X2, r.Y2, r.Text)
	}
	second := Merge(again)
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("region %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestBounds(t *testing.T) {
	if _, _, ok := Bounds(nil); ok {
		t.Error("Bounds(nil) should not be ok")
	}
	regs := []Region{
		{Rect: Rect{934, 54, 1177, 129}},
		{Rect: Rect{85, 721, 457, 785}},
		{Rect: Rect{1210, 730, 1350, 782}},
	}
	anchor, extent, ok := Bounds(regs)
	if !ok {
		t.Fatal("Bounds should be ok")
	}
	if anchor.X != 85 || anchor.Y != 54 {
		t.Errorf("anchor = %v", anchor)
	}
	if extent.X != 1350 || extent.Y != 785 {
		t.Errorf("extent = %v", extent)
	}
}

func TestText(t *testing.T) {
	regs := []Region{{Text: "Crew: Why"}, {Text: ""}, {Text: "robbing"}}
	if got := Text(regs); got != "Crew: Why robbing" {
		t.Errorf("Text() = %q", got)
	}
}

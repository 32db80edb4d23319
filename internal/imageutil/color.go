package imageutil

import (
	"image"
	"image/color"
	"sort"
)

// TextContrast is the minimum summed per-channel difference (in 16-bit channel
// units, so 500 in 8-bit terms) between text and background colors.
const TextContrast = 500 * 0x101

// TopColors is how many of the most frequent colors are considered for text.
const TopColors = 20

// AbsDiff is the summed absolute RGB difference of two colors in 16-bit units.
func AbsDiff(a, b color.Color) int {
	r1, g1, b1, _ := a.RGBA()
	r2, g2, b2, _ := b.RGBA()
	return absInt(int(r1)-int(r2)) + absInt(int(g1)-int(g2)) + absInt(int(b1)-int(b2))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// PixelAt returns the color at p, clamped into img's bounds.
func PixelAt(img image.Image, p image.Point) color.RGBA {
	b := img.Bounds()
	p.X = min(max(p.X, b.Min.X), b.Max.X-1)
	p.Y = min(max(p.Y, b.Min.Y), b.Max.Y-1)
	return color.RGBAModel.Convert(img.At(p.X, p.Y)).(color.RGBA)
}

// ContrastColor picks, among the TopColors most frequent colors inside r, the
// first that differs from bg by more than TextContrast.
func ContrastColor(img image.Image, r image.Rectangle, bg color.Color) (color.RGBA, bool) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return color.RGBA{}, false
	}

	counts := make(map[color.RGBA]int)
	var order []color.RGBA
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	for i, c := range order {
		if i >= TopColors {
			break
		}
		if AbsDiff(c, bg) > TextContrast {
			return c, true
		}
	}
	return color.RGBA{}, false
}

package overlay

import (
	"image"
	"image/color"

	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// Offset of the background reference pixel from the dialogue anchor: just
// left of the first glyphs and below the first line.
var backgroundOffset = image.Pt(-10, 40)

// Colors are the dialogue box colors sampled from a frame.
type Colors struct {
	Background color.RGBA `json:"background"`
	Text       color.RGBA `json:"text"`
	HasText    bool       `json:"has_text"`
}

// TextOrDefault returns the sampled text color, or white when none was found.
func (c Colors) TextOrDefault() color.RGBA {
	if c.HasText {
		return c.Text
	}
	return color.RGBA{255, 255, 255, 255}
}

// DeriveColors samples the dialogue background next to the anchor and picks
// the dominant contrasting color inside the first region as the text color.
func DeriveColors(frame image.Image, regs []regions.Region) Colors {
	anchor, _, ok := regions.Bounds(regs)
	if !ok {
		return Colors{}
	}
	bg := imageutil.PixelAt(frame, anchor.Add(backgroundOffset))
	text, found := imageutil.ContrastColor(frame, regs[0].Image(), bg)
	return Colors{Background: bg, Text: text, HasText: found}
}

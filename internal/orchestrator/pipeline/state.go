package pipeline

import (
	"image"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

// RenderState is everything the display layer needs for one overlay. It is
// never modified after commit; a new value replaces it as a whole.
type RenderState struct {
	Version     uint64           `json:"version"`
	Frame       image.Image      `json:"-"`
	FrameSeq    uint64           `json:"frame_seq"`
	Regions     []regions.Region `json:"regions"`
	Text        string           `json:"text"`
	Translation string           `json:"translation"`
	Translated  bool             `json:"translated"`
	Colors      overlay.Colors   `json:"colors"`
	Matches     []int            `json:"matches"`
	CommittedAt time.Time        `json:"committed_at"`
}

// Scene converts the state into renderer input.
func (s RenderState) Scene() overlay.Scene {
	return overlay.Scene{Regions: s.Regions, Translation: s.Translation, Colors: s.Colors}
}

// Empty reports whether nothing has been committed yet.
func (s RenderState) Empty() bool { return s.Version == 0 }

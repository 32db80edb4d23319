// Package imageutil holds the frame crops, compositing and codec helpers shared
// by the detector, the pipeline and the renderer.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	_ "image/png" // PNG decoder for pushed frames

	"github.com/nfnt/resize"
)

// CombinePadding is the gap between images joined by Combine.
const CombinePadding = 10

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside r, clipped to img's bounds. The result
// shares pixels with img when the concrete type supports it.
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	if si, ok := img.(subImager); ok {
		return si.SubImage(r)
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

// TopHalf crops the upper half of img.
func TopHalf(img image.Image) image.Image {
	b := img.Bounds()
	return Crop(img, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+b.Dy()/2))
}

// TrimTop removes a window title bar of the given height. Non-positive heights
// and heights that would empty the frame return img unchanged.
func TrimTop(img image.Image, px int) image.Image {
	b := img.Bounds()
	if px <= 0 || px >= b.Dy() {
		return img
	}
	return Crop(img, image.Rect(b.Min.X, b.Min.Y+px, b.Max.X, b.Max.Y))
}

// CropBoxes crops each rectangle out of img, skipping empty intersections.
func CropBoxes(img image.Image, boxes []image.Rectangle) []image.Image {
	out := make([]image.Image, 0, len(boxes))
	for _, r := range boxes {
		if r.Intersect(img.Bounds()).Empty() {
			continue
		}
		out = append(out, Crop(img, r))
	}
	return out
}

// Direction selects how Combine stacks images.
type Direction int

const (
	Vertical Direction = iota
	Horizontal
)

// Combine stacks images on a white canvas with CombinePadding between them.
func Combine(imgs []image.Image, dir Direction) *image.RGBA {
	if len(imgs) == 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}
	var w, h int
	for i, im := range imgs {
		b := im.Bounds()
		pad := 0
		if i > 0 {
			pad = CombinePadding
		}
		if dir == Vertical {
			w = max(w, b.Dx())
			h += b.Dy() + pad
		} else {
			w += b.Dx() + pad
			h = max(h, b.Dy())
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	offset := 0
	for _, im := range imgs {
		b := im.Bounds()
		var at image.Rectangle
		if dir == Vertical {
			at = image.Rect(0, offset, b.Dx(), offset+b.Dy())
			offset += b.Dy() + CombinePadding
		} else {
			at = image.Rect(offset, 0, offset+b.Dx(), b.Dy())
			offset += b.Dx() + CombinePadding
		}
		draw.Draw(dst, at, im, b.Min, draw.Src)
	}
	return dst
}

// Clone copies img into a new RGBA with origin (0,0) preserved from img.Bounds().
func Clone(img image.Image) *image.RGBA {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}

// BlurFactor is how much Blur shrinks the frame before scaling it back.
const BlurFactor = 8

// Blur returns a softened copy of img by downscaling and upscaling it.
func Blur(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := uint(max(1, b.Dx()/BlurFactor)), uint(max(1, b.Dy()/BlurFactor))
	small := resize.Resize(w, h, img, resize.Bilinear)
	big := resize.Resize(uint(b.Dx()), uint(b.Dy()), small, resize.Bilinear)

	dst := image.NewRGBA(b)
	draw.Draw(dst, b, big, big.Bounds().Min, draw.Src)
	return dst
}

// MaskRects returns an alpha mask that is opaque exactly inside rects.
func MaskRects(bounds image.Rectangle, rects []image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(bounds)
	for _, r := range rects {
		draw.Draw(mask, r.Intersect(bounds), image.Opaque, image.Point{}, draw.Src)
	}
	return mask
}

// DefaultMaxPixels caps the frames Decode accepts.
const DefaultMaxPixels = 4096 * 4096

// ErrFrameTooLarge reports a frame whose header declares more pixels than allowed.
var ErrFrameTooLarge = errors.New("frame too large")

// Decode reads a JPEG or PNG frame of at most DefaultMaxPixels.
func Decode(data []byte) (image.Image, error) {
	return DecodeMax(data, DefaultMaxPixels)
}

// DecodeMax reads a JPEG or PNG frame after checking the dimensions in its
// header against maxPixels, so oversized frames fail before any pixel buffer
// is allocated. maxPixels <= 0 means DefaultMaxPixels.
func DecodeMax(data []byte, maxPixels int) (image.Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFrameTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

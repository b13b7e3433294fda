package scanner

import (
	"image"
	"math"
)

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Placement is where a source frame lands on the drawing surface. X and Y may
// be negative when the frame overflows the surface and gets cropped.
type Placement struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Rect rounds the placement to whole pixels.
func (p Placement) Rect() image.Rectangle {
	x0 := int(math.Round(p.X))
	y0 := int(math.Round(p.Y))
	x1 := int(math.Round(p.X + p.Width))
	y1 := int(math.Round(p.Y + p.Height))
	return image.Rect(x0, y0, x1, y1)
}

// Fit computes the letterbox/pillarbox transform that makes source fill target
// without distortion. A source wider than the target is fitted to the target
// height and centered horizontally; otherwise it is fitted to the target width
// and centered vertically.
func Fit(source, target Size) Placement {
	if source.Empty() || target.Empty() {
		return Placement{}
	}

	sw, sh := float64(source.Width), float64(source.Height)
	tw, th := float64(target.Width), float64(target.Height)

	// source.W/source.H > target.W/target.H, compared without division
	if source.Width*target.Height > target.Width*source.Height {
		renderHeight := th
		renderWidth := th * sw / sh
		return Placement{
			X:      (tw - renderWidth) / 2,
			Y:      0,
			Width:  renderWidth,
			Height: renderHeight,
		}
	}

	renderWidth := tw
	renderHeight := tw * sh / sw
	return Placement{
		X:      0,
		Y:      (th - renderHeight) / 2,
		Width:  renderWidth,
		Height: renderHeight,
	}
}

// Viewfinder returns the centered square box of the given side on a canvas.
// A side of zero or less selects the whole canvas.
func Viewfinder(canvas Size, side int) image.Rectangle {
	full := image.Rect(0, 0, canvas.Width, canvas.Height)
	if side <= 0 {
		return full
	}

	x0 := (canvas.Width - side) / 2
	y0 := (canvas.Height - side) / 2
	return image.Rect(x0, y0, x0+side, y0+side).Intersect(full)
}

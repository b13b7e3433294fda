package scanner

import (
	"image"
	"image/color"
)

var (
	OutlineColor = color.RGBA{R: 0xFF, G: 0x3B, B: 0x58, A: 0xFF}
	MaskColor    = color.RGBA{A: 0x80}
	BracketColor = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

const (
	OutlineWidth  = 4
	bracketLength = 20
	bracketWidth  = 4
)

// DrawMask dims everything outside box, leaving a cutout with rounded corners.
func (s *Surface) DrawMask(box image.Rectangle, radius int, c color.RGBA) {
	bounds := s.img.Rect
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if insideRounded(x, y, box, radius) {
				continue
			}
			s.blend(x, y, c)
		}
	}
}

func insideRounded(x, y int, box image.Rectangle, radius int) bool {
	if !(image.Point{X: x, Y: y}.In(box)) {
		return false
	}
	if radius <= 0 {
		return true
	}
	if r := min(box.Dx(), box.Dy()) / 2; radius > r {
		radius = r
	}

	// distance to the nearest corner circle center, only inside corner squares
	cx, cy := x, y
	switch {
	case x < box.Min.X+radius:
		cx = box.Min.X + radius
	case x >= box.Max.X-radius:
		cx = box.Max.X - radius - 1
	}
	switch {
	case y < box.Min.Y+radius:
		cy = box.Min.Y + radius
	case y >= box.Max.Y-radius:
		cy = box.Max.Y - radius - 1
	}
	if cx == x || cy == y {
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}

// DrawBrackets draws an L-shaped mark at each corner of box.
func (s *Surface) DrawBrackets(box image.Rectangle, c color.RGBA) {
	length := min(bracketLength, box.Dx()/2, box.Dy()/2)
	w := bracketWidth
	x0, y0, x1, y1 := box.Min.X, box.Min.Y, box.Max.X, box.Max.Y

	// top left
	s.FillRect(image.Rect(x0-w, y0-w, x0+length, y0), c)
	s.FillRect(image.Rect(x0-w, y0, x0, y0+length), c)
	// top right
	s.FillRect(image.Rect(x1-length, y0-w, x1+w, y0), c)
	s.FillRect(image.Rect(x1, y0, x1+w, y0+length), c)
	// bottom left
	s.FillRect(image.Rect(x0-w, y1, x0+length, y1+w), c)
	s.FillRect(image.Rect(x0-w, y1-length, x0, y1), c)
	// bottom right
	s.FillRect(image.Rect(x1-length, y1, x1+w, y1+w), c)
	s.FillRect(image.Rect(x1, y1-length, x1+w, y1), c)
}

// DrawOutline connects the detected corners in order and closes the shape.
func (s *Surface) DrawOutline(corners []Point, c color.RGBA) {
	if len(corners) < 2 {
		return
	}
	for i := range corners {
		next := corners[(i+1)%len(corners)]
		s.DrawLine(corners[i], next, OutlineWidth, c)
	}
}

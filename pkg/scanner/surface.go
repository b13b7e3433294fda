package scanner

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Surface is the off-screen drawing target frames are rendered onto before
// their pixels are handed to the decoder.
type Surface struct {
	img *image.RGBA
}

func NewSurface(size Size) *Surface {
	s := &Surface{}
	s.Resize(size)
	return s
}

// Resize sets the surface dimensions. Like a canvas, resizing discards the
// current content.
func (s *Surface) Resize(size Size) {
	if s.img != nil && s.img.Rect.Dx() == size.Width && s.img.Rect.Dy() == size.Height {
		s.Clear()
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
}

func (s *Surface) Size() Size {
	if s.img == nil {
		return Size{}
	}
	return Size{Width: s.img.Rect.Dx(), Height: s.img.Rect.Dy()}
}

func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Rect, image.Transparent, image.Point{}, draw.Src)
}

// DrawFrame scales src into the placement. Parts of the placement that fall
// outside the surface are cropped.
func (s *Surface) DrawFrame(src image.Image, p Placement) {
	xdraw.ApproxBiLinear.Scale(s.img, p.Rect(), src, src.Bounds(), xdraw.Over, nil)
}

// DrawImage copies src unscaled at the origin.
func (s *Surface) DrawImage(src image.Image) {
	draw.Draw(s.img, s.img.Rect, src, src.Bounds().Min, draw.Src)
}

// Pixels copies the RGBA bytes of the given region, row by row.
func (s *Surface) Pixels(region image.Rectangle) ([]byte, int, int) {
	region = region.Intersect(s.img.Rect)
	w, h := region.Dx(), region.Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		start := s.img.PixOffset(region.Min.X, region.Min.Y+y)
		copy(out[y*w*4:(y+1)*w*4], s.img.Pix[start:start+w*4])
	}
	return out, w, h
}

// Snapshot returns a copy of the current surface content.
func (s *Surface) Snapshot() *image.RGBA {
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Surface) Image() *image.RGBA {
	return s.img
}

func (s *Surface) blend(x, y int, c color.RGBA) {
	if !(image.Point{X: x, Y: y}.In(s.img.Rect)) {
		return
	}
	i := s.img.PixOffset(x, y)
	a := uint32(c.A)
	inv := 255 - a
	s.img.Pix[i+0] = uint8((uint32(c.R)*a + uint32(s.img.Pix[i+0])*inv) / 255)
	s.img.Pix[i+1] = uint8((uint32(c.G)*a + uint32(s.img.Pix[i+1])*inv) / 255)
	s.img.Pix[i+2] = uint8((uint32(c.B)*a + uint32(s.img.Pix[i+2])*inv) / 255)
	s.img.Pix[i+3] = uint8(a + uint32(s.img.Pix[i+3])*inv/255)
}

// FillRect paints a solid rectangle, clipped to the surface.
func (s *Surface) FillRect(r image.Rectangle, c color.RGBA) {
	r = r.Intersect(s.img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s.blend(x, y, c)
		}
	}
}

// DrawLine strokes a segment with a square brush of the given width.
func (s *Surface) DrawLine(from, to Point, width int, c color.RGBA) {
	if width < 1 {
		width = 1
	}
	half := width / 2

	dx, dy := to.X-from.X, to.Y-from.Y
	steps := int(max(abs(dx), abs(dy)))
	if steps == 0 {
		steps = 1
	}

	stroked := make(map[image.Point]struct{})
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		cx := int(from.X + dx*t + 0.5)
		cy := int(from.Y + dy*t + 0.5)
		for by := cy - half; by < cy-half+width; by++ {
			for bx := cx - half; bx < cx-half+width; bx++ {
				p := image.Point{X: bx, Y: by}
				if _, done := stroked[p]; done {
					continue
				}
				stroked[p] = struct{}{}
				s.blend(bx, by, c)
			}
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

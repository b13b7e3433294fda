package scanner

import (
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
)

// finderHalf is the distance, in modules, from a finder pattern center to
// the outer edge of the symbol.
const finderHalf = 3.5

type vec struct{ x, y float64 }

func (a vec) add(b vec) vec       { return vec{a.x + b.x, a.y + b.y} }
func (a vec) sub(b vec) vec       { return vec{a.x - b.x, a.y - b.y} }
func (a vec) scale(k float64) vec { return vec{a.x * k, a.y * k} }
func (a vec) length() float64     { return math.Hypot(a.x, a.y) }
func (a vec) point() Point        { return Point{X: a.x, Y: a.y} }
func (a vec) unit() vec {
	l := a.length()
	if l == 0 {
		return vec{}
	}
	return a.scale(1 / l)
}

// locateCorners turns the finder pattern centers reported by the reader
// (bottom-left, top-left, top-right) into the symbol's outer corners in
// top-left, top-right, bottom-right, bottom-left order.
func locateCorners(img *image.RGBA, points []gozxing.ResultPoint) []Point {
	if len(points) < 3 {
		corners := make([]Point, 0, len(points))
		for _, p := range points {
			corners = append(corners, Point{X: p.GetX(), Y: p.GetY()})
		}
		return corners
	}

	bl := vec{points[0].GetX(), points[0].GetY()}
	tl := vec{points[1].GetX(), points[1].GetY()}
	tr := vec{points[2].GetX(), points[2].GetY()}

	// outward axes of the symbol as seen from the top-left finder
	left := tl.sub(tr).unit()
	up := tl.sub(bl).unit()

	module := finderModuleSize(img, tl, left, up)
	if module <= 0 {
		// smallest symbol: finder centers are 14 modules apart
		module = (tl.sub(tr).length() + tl.sub(bl).length()) / 2 / 14
	}
	h := finderHalf * module
	out := left.scale(h)
	top := up.scale(h)

	br := tr.add(bl).sub(tl)
	return []Point{
		tl.add(out).add(top).point(),
		tr.sub(out).add(top).point(),
		br.sub(out).sub(top).point(),
		bl.add(out).sub(top).point(),
	}
}

// finderModuleSize measures how far the finder pattern extends from its
// center along both outward axes and converts that to a module size.
func finderModuleSize(img *image.RGBA, center, a, b vec) float64 {
	da := finderEdge(img, center, a)
	db := finderEdge(img, center, b)
	switch {
	case da > 0 && db > 0:
		return (da + db) / 2 / finderHalf
	case da > 0:
		return da / finderHalf
	case db > 0:
		return db / finderHalf
	default:
		return 0
	}
}

// finderEdge walks from the dark finder center along dir and returns the
// distance to the outer boundary: dark core, light ring, dark ring, then
// light again. It returns 0 when that sequence is not found.
func finderEdge(img *image.RGBA, center, dir vec) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	maxSteps := b.Dx()
	if b.Dy() > maxSteps {
		maxSteps = b.Dy()
	}

	samples := make([]uint8, 0, 64)
	for i := 0; i < maxSteps; i++ {
		p := center.add(dir.scale(float64(i)))
		x, y := int(math.Floor(p.x)), int(math.Floor(p.y))
		if !(image.Point{X: x, Y: y}.In(b)) {
			break
		}
		samples = append(samples, luminance(img, x, y))
	}
	if len(samples) < 4 {
		return 0
	}

	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if int(hi)-int(lo) < 32 {
		return 0
	}
	threshold := (int(lo) + int(hi)) / 2

	transitions := 0
	dark := int(samples[0]) < threshold
	if !dark {
		return 0
	}
	for i, v := range samples[1:] {
		isDark := int(v) < threshold
		if isDark == dark {
			continue
		}
		dark = isDark
		transitions++
		if transitions == 3 {
			// the edge lies between the last dark sample and this one
			return float64(i+1) - 0.5
		}
	}
	return 0
}

func luminance(img *image.RGBA, x, y int) uint8 {
	i := img.PixOffset(x, y)
	r, g, b := int(img.Pix[i]), int(img.Pix[i+1]), int(img.Pix[i+2])
	return uint8((299*r + 587*g + 114*b) / 1000)
}

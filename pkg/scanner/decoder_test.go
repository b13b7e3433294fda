package scanner

import (
	"image"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// whiteFrameWithQR draws a side x side symbol (quiet zone included) with its
// top-left at `at` on a white canvas.
func whiteFrameWithQR(t *testing.T, text string, canvas, side int, at image.Point) *image.RGBA {
	t.Helper()
	frame := image.NewRGBA(image.Rect(0, 0, canvas, canvas))
	draw.Draw(frame, frame.Rect, image.White, image.Point{}, draw.Src)
	symbol := qrImage(t, text, side)
	draw.Draw(frame, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))}, symbol, symbol.Bounds().Min, draw.Src)
	return frame
}

func assertNear(t *testing.T, want, got Point, tolerance float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tolerance, "x of %v", got)
	assert.InDelta(t, want.Y, got.Y, tolerance, "y of %v", got)
}

func TestQRDecoder_CornersAreSymbolBounds(t *testing.T) {
	// "hello" is a 21 module symbol; at 200px the writer uses 6px modules
	// and 37px of padding, so the symbol spans 87..213 once drawn at (50,50).
	frame := whiteFrameWithQR(t, "hello", 300, 200, image.Pt(50, 50))

	result, err := NewQRDecoder().Decode(frame.Pix, 300, 300, DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Text)
	require.Len(t, result.Corners, 4)

	assertNear(t, Point{X: 87, Y: 87}, result.Corners[0], 3)
	assertNear(t, Point{X: 213, Y: 87}, result.Corners[1], 3)
	assertNear(t, Point{X: 213, Y: 213}, result.Corners[2], 3)
	assertNear(t, Point{X: 87, Y: 213}, result.Corners[3], 3)
}

func TestQRDecoder_NoSymbol(t *testing.T) {
	frame := solidFrame(120, 80)

	_, err := NewQRDecoder().Decode(frame.Pix, 120, 80, DecodeOptions{TryHarder: true})
	assert.ErrorIs(t, err, ErrNoSymbolFound)
}

func TestQRDecoder_RejectsMismatchedBuffer(t *testing.T) {
	_, err := NewQRDecoder().Decode(make([]byte, 10), 4, 4, DecodeOptions{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSymbolFound)
}

func TestLocateCorners_FallsBackToCenterSpacing(t *testing.T) {
	// no image to measure the finder against: module size comes from the
	// 14 module spacing between centers
	points := []gozxing.ResultPoint{
		gozxing.NewResultPoint(21, 77),
		gozxing.NewResultPoint(21, 21),
		gozxing.NewResultPoint(77, 21),
	}

	corners := locateCorners(nil, points)
	require.Len(t, corners, 4)
	assertNear(t, Point{X: 7, Y: 7}, corners[0], 0.001)
	assertNear(t, Point{X: 91, Y: 7}, corners[1], 0.001)
	assertNear(t, Point{X: 91, Y: 91}, corners[2], 0.001)
	assertNear(t, Point{X: 7, Y: 91}, corners[3], 0.001)
}

func TestLocateCorners_PassesThroughPartialPoints(t *testing.T) {
	points := []gozxing.ResultPoint{gozxing.NewResultPoint(3, 4)}
	assert.Equal(t, []Point{{X: 3, Y: 4}}, locateCorners(nil, points))
}

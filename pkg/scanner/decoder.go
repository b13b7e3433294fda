package scanner

import (
	"errors"
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type DecodeOptions struct {
	TryHarder   bool `json:"try_harder"`
	PureBarcode bool `json:"pure_barcode"`
}

// DecodeResult is produced once per successful decode. Corners are the
// symbol's outer corners (top-left, top-right, bottom-right, bottom-left)
// relative to the pixel buffer that was submitted.
type DecodeResult struct {
	Text    string  `json:"text"`
	Corners []Point `json:"corners,omitempty"`
}

// Offset returns a copy of the result with corners shifted by (dx, dy).
func (r DecodeResult) Offset(dx, dy float64) DecodeResult {
	corners := make([]Point, len(r.Corners))
	for i, c := range r.Corners {
		corners[i] = Point{X: c.X + dx, Y: c.Y + dy}
	}
	return DecodeResult{Text: r.Text, Corners: corners}
}

// Decoder turns an RGBA pixel buffer into a decoded symbol. Implementations
// return ErrNoSymbolFound when the buffer holds nothing decodable.
type Decoder interface {
	Decode(pixels []byte, width, height int, opts DecodeOptions) (*DecodeResult, error)
}

type qrDecoder struct {
	reader gozxing.Reader
}

func NewQRDecoder() Decoder {
	return &qrDecoder{
		reader: qrcode.NewQRCodeReader(),
	}
}

func (d *qrDecoder) Decode(pixels []byte, width, height int, opts DecodeOptions) (*DecodeResult, error) {
	img, err := rgbaToImage(pixels, width, height)
	if err != nil {
		return nil, err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSymbolFound, err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	hints[gozxing.DecodeHintType_POSSIBLE_FORMATS] = []gozxing.BarcodeFormat{gozxing.BarcodeFormat_QR_CODE}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	if opts.PureBarcode {
		hints[gozxing.DecodeHintType_PURE_BARCODE] = true
	}

	result, err := d.reader.Decode(bmp, hints)
	d.reader.Reset()
	if err != nil || result == nil {
		return nil, ErrNoSymbolFound
	}

	return &DecodeResult{
		Text:    result.GetText(),
		Corners: locateCorners(img, result.GetResultPoints()),
	}, nil
}

func rgbaToImage(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("invalid pixel buffer dimensions")
	}
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel buffer length %d does not match %dx%d RGBA", len(pixels), width, height)
	}

	return &image.RGBA{
		Pix:    pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

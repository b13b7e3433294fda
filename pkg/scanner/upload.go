package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// File is a user-supplied image, from a picker or a drop.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FilePicker asks the user for a single file.
type FilePicker interface {
	Pick(ctx context.Context) (File, error)
}

type DropPayload struct {
	Files []File
}

type UploadConfig struct {
	MaxFileSize   int64
	DecodeOptions DecodeOptions
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxFileSize:   5 * 1024 * 1024,
		DecodeOptions: DecodeOptions{TryHarder: true},
	}
}

type UploadCapabilities struct {
	Decoder  Decoder
	OnDecode func(text string)
	Picker   FilePicker
	Logger   *logrus.Logger
}

type UploadScanner struct {
	cfg  UploadConfig
	caps UploadCapabilities
	busy atomic.Bool
}

func NewUploadScanner(cfg UploadConfig, caps UploadCapabilities) *UploadScanner {
	if caps.Decoder == nil {
		caps.Decoder = NewQRDecoder()
	}
	if caps.Logger == nil {
		caps.Logger = logrus.StandardLogger()
	}
	return &UploadScanner{cfg: cfg, caps: caps}
}

func (u *UploadScanner) SelectFile(ctx context.Context) (*DecodeResult, error) {
	if u.caps.Picker == nil {
		return nil, ErrNoFile
	}
	file, err := u.caps.Picker.Pick(ctx)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrNoFile
	}
	return u.Decode(ctx, file)
}

func (u *UploadScanner) DropFile(ctx context.Context, payload DropPayload) (*DecodeResult, error) {
	switch len(payload.Files) {
	case 0:
		return nil, ErrNoFile
	case 1:
		return u.Decode(ctx, payload.Files[0])
	default:
		return nil, ErrMultipleFiles
	}
}

// Decode renders the image at its native size and submits the whole surface
// to the decoder once.
func (u *UploadScanner) Decode(ctx context.Context, file File) (*DecodeResult, error) {
	if file == nil {
		return nil, ErrNoFile
	}
	if !u.busy.CompareAndSwap(false, true) {
		return nil, ErrDecodeInProgress
	}
	defer u.busy.Store(false)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := u.load(file)
	if err != nil {
		u.caps.Logger.WithFields(logrus.Fields{
			"file":  file.Name(),
			"error": err.Error(),
		}).Warn("[UploadScanner.Decode] failed to load image")
		return nil, err
	}

	b := img.Bounds()
	surface := NewSurface(Size{Width: b.Dx(), Height: b.Dy()})
	surface.DrawImage(img)
	pixels, w, h := surface.Pixels(surface.Image().Rect)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := u.caps.Decoder.Decode(pixels, w, h, u.cfg.DecodeOptions)
	if err != nil || result == nil {
		u.caps.Logger.WithFields(logrus.Fields{
			"file": file.Name(),
		}).Info("[UploadScanner.Decode] no QR code found in image")
		return nil, ErrNoSymbolFound
	}

	if u.caps.OnDecode != nil {
		u.caps.OnDecode(result.Text)
	}
	return result, nil
}

func (u *UploadScanner) load(file File) (image.Image, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFile, err)
	}
	defer rc.Close()

	reader := io.Reader(rc)
	if u.cfg.MaxFileSize > 0 {
		reader = io.LimitReader(rc, u.cfg.MaxFileSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFile, err)
	}
	if u.cfg.MaxFileSize > 0 && int64(len(data)) > u.cfg.MaxFileSize {
		return nil, &SizeLimitError{Limit: u.cfg.MaxFileSize}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSymbolFound, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, ErrNoSymbolFound
	}
	return img, nil
}

type memoryFile struct {
	name string
	data []byte
}

// NewMemoryFile wraps an in-memory image as a File.
func NewMemoryFile(name string, data []byte) File {
	return &memoryFile{name: name, data: data}
}

func (f *memoryFile) Name() string {
	return f.name
}

func (f *memoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

package scanner

import (
	"errors"
	"fmt"
)

var (
	ErrNoCamera          = errors.New("no camera found on this device")
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrStreamAcquisition = errors.New("camera is busy or unavailable")
	ErrNoSymbolFound     = errors.New("no QR code found in image")

	ErrAlreadyScanning  = errors.New("scan session already running")
	ErrStartCancelled   = errors.New("scan stopped before the camera was ready")
	ErrMultipleFiles    = errors.New("only one file can be scanned at a time")
	ErrNoFile           = errors.New("no file provided")
	ErrDecodeInProgress = errors.New("another image is being decoded")
	ErrFileTooLarge     = errors.New("file size exceeds limit")

	// ErrFrameNotReady is returned by a stream that has not buffered a frame yet.
	ErrFrameNotReady = errors.New("frame not ready")
)

// SizeLimitError reports the configured limit an upload went over.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("file too large. Maximum size is %s", FormatBytes(e.Limit))
}

func (e *SizeLimitError) Is(target error) bool {
	return target == ErrFileTooLarge
}

// FormatBytes renders n in the largest whole binary unit, e.g. "5MB".
func FormatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return fmt.Sprintf("%dMB", n/(unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.1fMB", float64(n)/(unit*unit))
	case n >= unit && n%unit == 0:
		return fmt.Sprintf("%dKB", n/unit)
	case n >= unit:
		return fmt.Sprintf("%.1fKB", float64(n)/unit)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

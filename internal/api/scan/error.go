package scan

import (
	"QRScanner/pkg/response"
	"QRScanner/pkg/scanner"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoPreview      = errors.New("no preview available")
	ErrInvalidForm    = response.NewError(http.StatusBadRequest, "invalid multipart form")
	ErrInvalidMessage = response.NewError(http.StatusBadRequest, "invalid message")
)

type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

var scannerErrors = []struct {
	err  error
	info ErrorInfo
}{
	{scanner.ErrAlreadyScanning, ErrorInfo{http.StatusConflict, "ALREADY_SCANNING", "A scan session is already running"}},
	{scanner.ErrStartCancelled, ErrorInfo{http.StatusConflict, "SCAN_CANCELLED", "Scan was stopped before the camera was ready"}},
	{scanner.ErrNoCamera, ErrorInfo{http.StatusNotFound, "NO_CAMERA", "No camera found on this device"}},
	{scanner.ErrPermissionDenied, ErrorInfo{http.StatusForbidden, "PERMISSION_DENIED", "Camera permission denied"}},
	{scanner.ErrStreamAcquisition, ErrorInfo{http.StatusServiceUnavailable, "CAMERA_UNAVAILABLE", "Camera is busy or unavailable"}},
	{scanner.ErrNoSymbolFound, ErrorInfo{http.StatusUnprocessableEntity, "NO_QR_FOUND", "No QR code found in image"}},
	{scanner.ErrMultipleFiles, ErrorInfo{http.StatusBadRequest, "MULTIPLE_FILES", "Only one file can be scanned at a time"}},
	{scanner.ErrNoFile, ErrorInfo{http.StatusBadRequest, "NO_FILE", "No file provided"}},
	{scanner.ErrFileTooLarge, ErrorInfo{http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large"}},
	{scanner.ErrDecodeInProgress, ErrorInfo{http.StatusConflict, "DECODE_IN_PROGRESS", "Another image is being decoded"}},
}

// Classify maps scanner errors to their HTTP status and client-facing code.
func Classify(err error) (ErrorInfo, bool) {
	for _, e := range scannerErrors {
		if errors.Is(err, e.err) {
			info := e.info
			var limit *scanner.SizeLimitError
			if errors.As(err, &limit) {
				info.Message = fmt.Sprintf("File too large. Maximum size is %s.", scanner.FormatBytes(limit.Limit))
			}
			return info, true
		}
	}
	return ErrorInfo{}, false
}

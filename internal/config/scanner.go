package config

import (
	scanService "QRScanner/internal/api/scan/service"
	"QRScanner/pkg/banking"
	"QRScanner/pkg/scanner"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	CameraBackendOpenCV = "opencv"
	CameraBackendRemote = "remote"
)

// ScannerConfig collects every scanner related setting read from the
// environment.
type ScannerConfig struct {
	CanvasWidth  int `validate:"gt=0"`
	CanvasHeight int `validate:"gt=0"`
	// Viewfinder is the side of the sampled square; 0 samples the whole surface.
	Viewfinder    int `validate:"gte=0"`
	Overlay       bool
	OverlayRadius int           `validate:"gte=0"`
	FrameInterval time.Duration `validate:"gt=0"`

	CameraBackend     string `validate:"oneof=opencv remote"`
	CameraDeviceIndex int
	CameraIdealWidth  int `validate:"gt=0"`
	CameraIdealHeight int `validate:"gt=0"`

	UploadMaxSize int64 `validate:"gt=0"`

	BankingURL      string `validate:"omitempty,url"`
	BankingTimeout  time.Duration
	BankingCacheTTL time.Duration

	RequireAuth bool
}

func NewScannerConfig(v *validator.Validate) (*ScannerConfig, error) {
	camera := scanner.DefaultCameraConfig()
	upload := scanner.DefaultUploadConfig()

	cfg := &ScannerConfig{
		CanvasWidth:   envInt("SCANNER_CANVAS_WIDTH", camera.Canvas.Width),
		CanvasHeight:  envInt("SCANNER_CANVAS_HEIGHT", camera.Canvas.Height),
		Viewfinder:    envInt("SCANNER_VIEWFINDER", camera.Viewfinder),
		Overlay:       envBool("SCANNER_OVERLAY", camera.Overlay),
		OverlayRadius: envInt("SCANNER_OVERLAY_RADIUS", camera.OverlayRadius),
		FrameInterval: envDuration("SCANNER_FRAME_INTERVAL", camera.FrameInterval),

		CameraBackend:     strings.ToLower(envString("CAMERA_BACKEND", CameraBackendRemote)),
		CameraDeviceIndex: envInt("CAMERA_DEVICE_INDEX", -1),
		CameraIdealWidth:  envInt("CAMERA_IDEAL_WIDTH", camera.Constraints.IdealWidth),
		CameraIdealHeight: envInt("CAMERA_IDEAL_HEIGHT", camera.Constraints.IdealHeight),

		UploadMaxSize: int64(envInt("UPLOAD_MAX_SIZE", int(upload.MaxFileSize))),

		BankingURL:      os.Getenv("BANKING_INFO_URL"),
		BankingTimeout:  envDuration("BANKING_TIMEOUT", 5*time.Second),
		BankingCacheTTL: envDuration("BANKING_CACHE_TTL", 10*time.Minute),

		RequireAuth: envBool("SCAN_REQUIRE_AUTH", false),
	}

	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid scanner configuration: %w", err)
	}
	if cfg.Viewfinder > 0 && (cfg.Viewfinder > cfg.CanvasWidth || cfg.Viewfinder > cfg.CanvasHeight) {
		return nil, fmt.Errorf("invalid scanner configuration: viewfinder %d exceeds canvas %dx%d",
			cfg.Viewfinder, cfg.CanvasWidth, cfg.CanvasHeight)
	}
	return cfg, nil
}

func (c *ScannerConfig) Service() scanService.Config {
	camera := scanner.DefaultCameraConfig()
	camera.Canvas = scanner.Size{Width: c.CanvasWidth, Height: c.CanvasHeight}
	camera.Viewfinder = c.Viewfinder
	camera.Overlay = c.Overlay
	camera.OverlayRadius = c.OverlayRadius
	camera.FrameInterval = c.FrameInterval
	camera.Constraints.IdealWidth = c.CameraIdealWidth
	camera.Constraints.IdealHeight = c.CameraIdealHeight

	upload := scanner.DefaultUploadConfig()
	upload.MaxFileSize = c.UploadMaxSize

	return scanService.Config{
		Camera:         camera,
		Upload:         upload,
		BankingTimeout: c.BankingTimeout,
	}
}

func (c *ScannerConfig) Banking() banking.Config {
	return banking.Config{
		BaseURL:  c.BankingURL,
		Timeout:  c.BankingTimeout,
		CacheTTL: c.BankingCacheTTL,
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts "250ms" style values or a bare number of milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

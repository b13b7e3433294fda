package scanService

import (
	"QRScanner/internal/api/scan"
	"QRScanner/internal/entity"
	"QRScanner/pkg/banking"
	"QRScanner/pkg/log"
	"QRScanner/pkg/qris"
	"QRScanner/pkg/scanner"
	"context"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type IScanService interface {
	CameraState() scan.CameraStateResponse
	StartCamera(ctx context.Context) (scan.CameraStateResponse, error)
	StopCamera() scan.CameraStateResponse
	Preview() ([]byte, error)
	Upload(ctx context.Context, file scanner.File) (*scan.DecodeResponse, error)
	Drop(ctx context.Context, files []scanner.File) (*scan.DecodeResponse, error)
	OpenRemoteSession(emit func(entity.ScanEvent)) *RemoteSession
	Subscribe() (<-chan entity.ScanEvent, func())
}

type Config struct {
	Camera         scanner.CameraConfig
	Upload         scanner.UploadConfig
	BankingTimeout time.Duration
}

type scanService struct {
	log     *logrus.Logger
	cfg     Config
	decoder scanner.Decoder
	banking banking.IBanking
	hub     *hub

	camera *scanner.CameraScanner

	mu        sync.RWMutex
	sessionID string
	preview   *image.RGBA
}

func NewScanService(
	log *logrus.Logger,
	cfg Config,
	devices scanner.MediaDevices,
	decoder scanner.Decoder,
	bankingClient banking.IBanking,
) IScanService {
	if cfg.BankingTimeout <= 0 {
		cfg.BankingTimeout = 5 * time.Second
	}

	s := &scanService{
		log:     log,
		cfg:     cfg,
		decoder: decoder,
		banking: bankingClient,
		hub:     newHub(),
	}

	s.camera = scanner.NewCameraScanner(cfg.Camera, scanner.Capabilities{
		Devices:   devices,
		Decoder:   decoder,
		Scheduler: scanner.NewIntervalScheduler(cfg.Camera.FrameInterval),
		OnResult: func(result scanner.DecodeResult) {
			s.onCameraDecode(result)
		},
		OnError: func(err error) {
			s.hub.publish(errorEvent(err, s.currentSession(), entity.ScanSourceCamera))
		},
		Display: scanner.DisplayFunc(s.onCameraState),
		Preview: scanner.PreviewFunc(s.storePreview),
		Logger:  log,
	})

	return s
}

func (s *scanService) Subscribe() (<-chan entity.ScanEvent, func()) {
	return s.hub.subscribe()
}

func (s *scanService) currentSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *scanService) endpointEnabled() bool {
	return s.banking != nil && s.banking.Enabled()
}

// canResolveBanking is a cheap check made before spawning a lookup.
func (s *scanService) canResolveBanking(text string) bool {
	return s.endpointEnabled() || qris.IsPayload(text)
}

// resolveBanking never fails the caller; a failed lookup only means the
// form is not pre-filled. The endpoint wins over a locally parsed QRIS.
func (s *scanService) resolveBanking(ctx context.Context, text string) *entity.BankingInfo {
	if s.endpointEnabled() {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.BankingTimeout)
		defer cancel()

		info, err := s.banking.Lookup(ctx, text)
		if err == nil {
			return info
		}
		log.WithRequestID(ctx, s.log).WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("[scanService.resolveBanking] failed to resolve banking info")
	}

	if !qris.IsPayload(text) {
		return nil
	}
	payload, err := qris.Parse(text)
	if err != nil {
		log.WithRequestID(ctx, s.log).WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("[scanService.resolveBanking] invalid QRIS payload")
		return nil
	}
	return banking.FromQRIS(payload)
}

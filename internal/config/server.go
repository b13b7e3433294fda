package config

import (
	scanHandler "QRScanner/internal/api/scan/handler"
	scanService "QRScanner/internal/api/scan/service"
	"QRScanner/internal/middleware"
	"QRScanner/pkg/banking"
	"QRScanner/pkg/device/remote"
	"QRScanner/pkg/redis"
	"QRScanner/pkg/scanner"
	"QRScanner/pkg/utils"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine        *fiber.App
	log           *logrus.Logger
	middleware    middleware.Middleware
	validator     *validator.Validate
	utils         utils.IUtils
	handlers      []handler
	redisServer   redis.IRedis
	bankingClient banking.IBanking
	scanner       *ScannerConfig
	scanService   scanService.IScanService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.middleware == nil {
		return nil, fmt.Errorf("middleware is required")
	}
	if server.scanService == nil {
		return nil, fmt.Errorf("scan service is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithScannerConfig(cfg *ScannerConfig) ServerOption {
	return func(s *Server) error {
		s.scanner = cfg
		return nil
	}
}

// WithRedisServer attaches the banking cache. A failed ping is logged and the
// cache is skipped.
func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisServer.Ping(ctx); err != nil {
			if s.log != nil {
				s.log.Warnf("Redis unavailable, banking lookups will not be cached: %v", err)
			}
			return nil
		}
		s.redisServer = redisServer
		return nil
	}
}

func WithBankingClient() ServerOption {
	return func(s *Server) error {
		if s.scanner == nil {
			return fmt.Errorf("scanner config must be set before banking client")
		}
		s.bankingClient = banking.New(s.scanner.Banking(), s.redisServer, s.log)
		if !s.bankingClient.Enabled() && s.log != nil {
			s.log.Info("BANKING_INFO_URL not set, banking lookups disabled")
		}
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.scanner != nil {
			s.utils = utils.NewWithLimit(s.scanner.UploadMaxSize)
			return nil
		}
		s.utils = utils.New()
		return nil
	}
}

func WithScanService() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.scanner == nil {
			return fmt.Errorf("logger and scanner config must be set before scan service")
		}

		var devices scanner.MediaDevices
		switch s.scanner.CameraBackend {
		case CameraBackendOpenCV:
			local, err := localCamera(s.scanner.CameraDeviceIndex, s.log)
			if err != nil {
				return err
			}
			devices = local
		default:
			devices = remote.New()
		}

		s.scanService = scanService.NewScanService(
			s.log,
			s.scanner.Service(),
			devices,
			scanner.NewQRDecoder(),
			s.bankingClient,
		)
		s.log.WithField("camera_backend", s.scanner.CameraBackend).Info("Scan service ready")
		return nil
	}
}

func (s *Server) RegisterHandler() {
	requireAuth := s.scanner != nil && s.scanner.RequireAuth
	scanHandlers := scanHandler.New(s.log, s.validator, s.middleware, s.scanService, s.utils, requireAuth)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, scanHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.scanService.StopCamera()
	return s.engine.ShutdownWithContext(ctx)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message": "Server is Healthy!",
			"camera":  s.scanService.CameraState().State,
		})
	})
}

package scanHandler

import (
	scanService "QRScanner/internal/api/scan/service"
	"QRScanner/internal/middleware"
	jwtPkg "QRScanner/pkg/jwt"
	"QRScanner/pkg/log"
	"QRScanner/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type ScanHandler struct {
	log         *logrus.Logger
	validator   *validator.Validate
	middleware  middleware.Middleware
	scanService scanService.IScanService
	utils       utils.IUtils
	requireAuth bool
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ss scanService.IScanService,
	utils utils.IUtils,
	requireAuth bool,
) *ScanHandler {
	return &ScanHandler{
		scanService: ss,
		log:         log,
		validator:   validator,
		middleware:  middleware,
		utils:       utils,
		requireAuth: requireAuth,
	}
}

func (h *ScanHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	scan := srv.Group("/scan")
	scan.Use(h.middleware.NewRateLimiter)
	if h.requireAuth {
		scan.Use(h.middleware.NewTokenMiddleware)
	}

	scan.Get("/camera", h.GetCameraState)
	scan.Post("/camera/start", h.StartCamera)
	scan.Post("/camera/stop", h.StopCamera)
	scan.Get("/camera/preview", h.GetPreview)
	scan.Use("/camera/ws", wsMiddleware)
	scan.Get("/camera/ws", websocket.New(h.handleRemoteCameraWebSocket))

	scan.Use("/events/ws", wsMiddleware)
	scan.Get("/events/ws", websocket.New(h.handleEventsWebSocket))

	scan.Post("/upload", h.Upload)
	scan.Post("/drop", h.Drop)
}

// logFields carries the request id and path, plus the caller's id on
// authenticated routes.
func (h *ScanHandler) logFields(ctx *fiber.Ctx, requestID string) log.Fields {
	fields := log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}
	if h.requireAuth {
		if user, err := jwtPkg.GetUserLoginData(ctx); err == nil {
			fields["user_id"] = user.ID
		}
	}
	return fields
}

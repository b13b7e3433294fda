package scanHandler

import (
	"QRScanner/internal/api/scan"
	contextPkg "QRScanner/pkg/context"
	"QRScanner/pkg/handlerUtil"
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (h *ScanHandler) GetCameraState(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.scanService.CameraState())
}

func (h *ScanHandler) StartCamera(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(h.logFields(ctx, requestID)).Debug("Starting camera scan")

	state, err := h.scanService.StartCamera(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "start_camera")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, state)
}

func (h *ScanHandler) StopCamera(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(h.logFields(ctx, requestID)).Debug("Stopping camera scan")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.scanService.StopCamera())
}

func (h *ScanHandler) GetPreview(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	frame, err := h.scanService.Preview()
	if err != nil {
		if errors.Is(err, scan.ErrNoPreview) {
			return ctx.SendStatus(fiber.StatusNoContent)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_preview")
	}

	ctx.Set(fiber.HeaderContentType, "image/jpeg")
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	return ctx.Status(fiber.StatusOK).Send(frame)
}

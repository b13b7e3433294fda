package scanHandler

import (
	"QRScanner/internal/api/scan"
	contextPkg "QRScanner/pkg/context"
	"QRScanner/pkg/handlerUtil"
	"QRScanner/pkg/log"
	"QRScanner/pkg/scanner"
	"context"
	"io"
	"mime/multipart"
	"time"

	"github.com/gofiber/fiber/v2"
)

type multipartFile struct {
	header *multipart.FileHeader
}

func (f multipartFile) Name() string {
	return f.header.Filename
}

func (f multipartFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

func (h *ScanHandler) Upload(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 15*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("file")
	if err != nil {
		return errHandler.Handle(ctx, requestID, scanner.ErrNoFile, ctx.Path(), "form_file")
	}

	h.log.WithFields(h.logFields(ctx, requestID)).WithFields(log.Fields{
		"file_name": file.Filename,
		"file_size": file.Size,
	}).Debug("Processing QR upload")

	if err := h.utils.ValidateImageFile(file); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
	}

	resp, err := h.scanService.Upload(c, multipartFile{header: file})
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_scan")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func (h *ScanHandler) Drop(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 15*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	form, err := ctx.MultipartForm()
	if err != nil {
		return errHandler.Handle(ctx, requestID, scan.ErrInvalidForm, ctx.Path(), "multipart_form")
	}

	headers := form.File["files"]
	h.log.WithFields(h.logFields(ctx, requestID)).WithField("file_count", len(headers)).Debug("Processing QR drop")

	// a single dropped file gets the same checks as a picked one
	if len(headers) == 1 {
		if err := h.utils.ValidateImageFile(headers[0]); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}
	}

	files := make([]scanner.File, len(headers))
	for i, header := range headers {
		files[i] = multipartFile{header: header}
	}

	resp, err := h.scanService.Drop(c, files)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "drop_scan")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

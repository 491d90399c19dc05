package handler

import (
	"bufio"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Clinteastman/heartlib/internal/service"
	"github.com/Clinteastman/heartlib/pkg/response"
)

type ModelsHandler struct {
	service *service.ModelService
}

func NewModelsHandler(svc *service.ModelService) *ModelsHandler {
	return &ModelsHandler{service: svc}
}

// Status handles GET /api/models/status
func (h *ModelsHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, h.service.Status())
}

// Download handles POST /api/models/download
func (h *ModelsHandler) Download(c *fiber.Ctx) error {
	// The download outlives the request
	if err := h.service.StartDownload(context.Background()); err != nil {
		if errors.Is(err, service.ErrDownloadInProgress) {
			return response.CapacityExceeded(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, h.service.DownloadStatus())
}

// DownloadStatus handles GET /api/models/download/status
func (h *ModelsHandler) DownloadStatus(c *fiber.Ctx) error {
	return response.OK(c, h.service.DownloadStatus())
}

// DownloadProgress handles GET /api/models/download/progress, a Server-Sent
// Events stream of the download status polled until the download ends.
func (h *ModelsHandler) DownloadProgress(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		_ = h.service.StreamDownloadStatus(w)
	}))

	return nil
}

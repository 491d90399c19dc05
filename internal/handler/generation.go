package handler

import (
	"bufio"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/Clinteastman/heartlib/internal/model"
	"github.com/Clinteastman/heartlib/internal/service"
	"github.com/Clinteastman/heartlib/pkg/response"
)

type GenerationHandler struct {
	service   *service.GenerationService
	validator *validator.Validate
}

func NewGenerationHandler(svc *service.GenerationService, v *validator.Validate) *GenerationHandler {
	return &GenerationHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/generation/start
func (h *GenerationHandler) Start(c *fiber.Ctx) error {
	var req model.GenerationStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Start(&req)
	if err != nil {
		if errors.Is(err, service.ErrCapacityExceeded) {
			return response.CapacityExceeded(c, "A generation is already in progress. Please wait for it to complete.")
		}
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/generation/status/:jobId
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	snap, err := h.service.Status(jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, snap)
}

// Progress handles GET /api/generation/progress/:jobId, a Server-Sent
// Events stream of job snapshots, sustained by keepalive comments and
// terminated after the first terminal snapshot.
func (h *GenerationHandler) Progress(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	// Resolve not-found before committing to a streaming response
	if _, err := h.service.Status(jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// Write errors mean the client went away; the bridge detaches its
		// observer on every exit path
		_ = h.service.StreamProgress(w, jobID)
	}))

	return nil
}

// Download handles GET /api/generation/download/:jobId
func (h *GenerationHandler) Download(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	info, err := h.service.DownloadInfo(jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		if errors.Is(err, service.ErrJobNotCompleted) {
			return response.ValidationError(c, "Job is not completed", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, info)
}

package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Clinteastman/heartlib/internal/model"
	"github.com/Clinteastman/heartlib/internal/service"
	"github.com/Clinteastman/heartlib/pkg/response"
)

type SettingsHandler struct {
	lyrics    *service.LyricsService
	validator *validator.Validate
}

func NewSettingsHandler(lyrics *service.LyricsService, v *validator.Validate) *SettingsHandler {
	return &SettingsHandler{
		lyrics:    lyrics,
		validator: v,
	}
}

// Providers handles GET /api/settings/llm/providers
func (h *SettingsHandler) Providers(c *fiber.Ctx) error {
	return response.OK(c, h.lyrics.Providers())
}

// Get handles GET /api/settings/llm
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, h.lyrics.Settings())
}

// Update handles PUT /api/settings/llm
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req model.UpdateLLMSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.lyrics.UpdateSettings(&req); err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	return response.OK(c, h.lyrics.Settings())
}

// DeleteAPIKey handles DELETE /api/settings/llm/api-key/:provider
func (h *SettingsHandler) DeleteAPIKey(c *fiber.Ctx) error {
	provider := c.Params("provider")
	if provider == "" {
		return response.ValidationError(c, "Provider is required", nil)
	}

	h.lyrics.DeleteAPIKey(provider)
	return response.NoContent(c)
}

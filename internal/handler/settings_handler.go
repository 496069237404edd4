package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/service"
	"github.com/noah-isme/graderbot/internal/utils"
)

// SettingsHandler exposes the instructor preference store.
type SettingsHandler struct {
	service   service.SettingsService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewSettingsHandler constructs a settings handler.
func NewSettingsHandler(service service.SettingsService, validate *validator.Validate, logger zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "settings_handler").Logger(),
	}
}

// Register binds settings routes.
func (h *SettingsHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:key", h.get)
	router.Put("/:key", h.put)
	router.Delete("/:key", h.delete)
}

func (h *SettingsHandler) list(c *fiber.Ctx) error {
	settings, err := h.service.List(middleware.RequestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list settings")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list settings")
	}
	return utils.SendSuccess(c, "settings", settings)
}

func (h *SettingsHandler) get(c *fiber.Ctx) error {
	setting, err := h.service.Load(middleware.RequestContext(c), c.Params("key"))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "setting", setting)
}

func (h *SettingsHandler) put(c *fiber.Ctx) error {
	var req dto.SettingUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	saved, err := h.service.Save(middleware.RequestContext(c), c.Params("key"), req.Value)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "setting saved", saved)
}

func (h *SettingsHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(middleware.RequestContext(c), c.Params("key")); err != nil {
		return h.fail(c, err)
	}
	return utils.SendSuccess(c, "setting deleted", nil)
}

func (h *SettingsHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownSetting), errors.Is(err, service.ErrInvalidSettingValue):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSettingNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("settings request failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "settings request failed")
	}
}

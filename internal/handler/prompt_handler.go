package handler

import (
	"bufio"
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/service"
	"github.com/noah-isme/graderbot/internal/utils"
)

// PromptHandler saves a prompt and replays it against the model.
type PromptHandler struct {
	prompts   service.PromptService
	generate  service.GenerateService
	settings  service.SettingsService
	cfg       config.Config
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPromptHandler constructs a prompt handler.
func NewPromptHandler(prompts service.PromptService, generate service.GenerateService, settings service.SettingsService, cfg config.Config, validate *validator.Validate, logger zerolog.Logger) *PromptHandler {
	return &PromptHandler{
		prompts:   prompts,
		generate:  generate,
		settings:  settings,
		cfg:       cfg,
		validator: validate,
		logger:    logger.With().Str("component", "prompt_handler").Logger(),
	}
}

// Register binds prompt routes under router.
func (h *PromptHandler) Register(router fiber.Router) {
	router.Post("/prompts", h.save)
	router.Get("/prompts/current", h.current)
	router.Post("/generate", h.stream)
}

func (h *PromptHandler) save(c *fiber.Ctx) error {
	var req dto.SavePromptRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	saved, err := h.prompts.Save(middleware.RequestContext(c), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to save prompt")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to save prompt")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "prompt saved", saved)
}

func (h *PromptHandler) current(c *fiber.Ctx) error {
	current, err := h.prompts.Current(middleware.RequestContext(c))
	if err != nil {
		if errors.Is(err, service.ErrPromptNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to load prompt")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load prompt")
	}
	return utils.SendSuccess(c, "current prompt", current)
}

func (h *PromptHandler) stream(c *fiber.Ctx) error {
	var req dto.GenerateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	reqCtx := middleware.RequestContext(c)
	if _, err := h.prompts.Current(reqCtx); err != nil {
		if errors.Is(err, service.ErrPromptNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load prompt")
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(reqCtx))
	cfg := batchConfig(ctx, h.cfg, h.settings, req.BatchOverrides)
	logger := requestLogger(h.logger, c)

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		_, err := h.generate.Stream(ctx, cfg, func(chunk string) error {
			if _, err := w.WriteString(chunk); err != nil {
				return err
			}
			return w.Flush()
		})
		if err != nil {
			logger.Warn().Err(err).Msg("generate stream ended with error")
			_, _ = w.WriteString("\n[error] " + err.Error())
			_ = w.Flush()
		}
	})
	return nil
}

package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/service"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// validationMessage lists the failing fields, e.g. "prompts is required".
func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	parts := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field()[:1]) + fieldErr.Field()[1:]
		switch fieldErr.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must contain at least %s item(s)", field, fieldErr.Param()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", field, fieldErr.Param()))
		case "url":
			parts = append(parts, field+" must be a valid URL")
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", field, fieldErr.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// batchConfig samples configuration once for a batch or generate call.
func batchConfig(ctx context.Context, cfg config.Config, settings service.SettingsService, overrides dto.BatchOverrides) service.BatchConfig {
	var snapshot service.SettingsSnapshot
	if settings != nil {
		snapshot = settings.Snapshot(ctx)
	}
	return service.NewBatchConfig(cfg, snapshot, overrides)
}

// writeLine writes one NDJSON record and flushes it to the client.
func writeLine(w *bufio.Writer, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

package handler

import (
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/service"
	"github.com/noah-isme/graderbot/internal/utils"
)

// CSVUploadHandler accepts the questions, grading scheme, answers and rubric files.
type CSVUploadHandler struct {
	service service.CSVIntakeService
	logger  zerolog.Logger
}

// NewCSVUploadHandler constructs a CSV upload handler.
func NewCSVUploadHandler(service service.CSVIntakeService, logger zerolog.Logger) *CSVUploadHandler {
	return &CSVUploadHandler{
		service: service,
		logger:  logger.With().Str("component", "csv_upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *CSVUploadHandler) Register(router fiber.Router) {
	router.Post("/upload", h.upload)
}

func (h *CSVUploadHandler) upload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form with csvFile1 and csvFile3 is required")
	}

	files := make(map[string]*multipart.FileHeader)
	for _, part := range []string{service.PartQuestions, service.PartScheme, service.PartAnswers, service.PartRubricFile} {
		if headers := form.File[part]; len(headers) > 0 {
			files[part] = headers[0]
		}
	}

	parsed, err := h.service.ParseAndMap(middleware.RequestContext(c), files)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrUploadMissingFile),
			errors.Is(err, service.ErrUploadTypeNotAllowed),
			errors.Is(err, service.ErrParse):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("csv upload failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to process upload")
		}
	}

	return utils.SendSuccess(c, "files processed", parsed)
}

package handler

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/service"
	"github.com/noah-isme/graderbot/internal/utils"
)

// GradingHandler exposes prompt compilation, batch grading and result export.
type GradingHandler struct {
	orchestrator service.GradingOrchestrator
	settings     service.SettingsService
	cfg          config.Config
	validator    *validator.Validate
	logger       zerolog.Logger
}

// NewGradingHandler constructs a grading handler.
func NewGradingHandler(orchestrator service.GradingOrchestrator, settings service.SettingsService, cfg config.Config, validate *validator.Validate, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		orchestrator: orchestrator,
		settings:     settings,
		cfg:          cfg,
		validator:    validate,
		logger:       logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register binds grading routes. batchGuard, when non-nil, runs before every batch
// start over HTTP or websocket.
func (h *GradingHandler) Register(router fiber.Router, batchGuard fiber.Handler) {
	if batchGuard == nil {
		batchGuard = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Post("/prompts", h.compile)
	router.Post("/batch", batchGuard, h.batch)
	router.Post("/export", h.export)
	router.Post("/report", h.report)

	router.Use("/ws", batchGuard, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", middleware.RequestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *GradingHandler) compile(c *fiber.Ctx) error {
	var req dto.CompilePromptsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	course := strings.TrimSpace(req.Course)
	if course == "" && h.settings != nil {
		course = h.settings.Snapshot(middleware.RequestContext(c)).Course
	}
	format := models.PromptFormat(req.Format)
	if !format.Valid() {
		format = h.cfg.LLM.Format
	}

	prompts := service.CompileBatch(req.Questions, req.GradingRubrics, req.StudentAnswers, service.CompileContext{
		Format: format,
		Course: course,
	})
	return utils.SendSuccess(c, "prompts compiled", dto.CompilePromptsResponse{Prompts: prompts, Total: len(prompts)})
}

func (h *GradingHandler) batch(c *fiber.Ctx) error {
	var req dto.GradeBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	// The stream outlives the handler, so it gets its own cancellable context.
	ctx, cancel := context.WithCancel(context.WithoutCancel(middleware.RequestContext(c)))
	batchID := uuid.NewString()
	logger := requestLogger(h.logger, c).With().Str("batch_id", batchID).Logger()

	var summary service.BatchSummary
	results, err := h.orchestrator.Results(ctx, service.BatchRun{
		ID:       batchID,
		Config:   batchConfig(ctx, h.cfg, h.settings, req.BatchOverrides),
		Prompts:  req.Prompts,
		Observer: service.BatchObserver{OnComplete: func(s service.BatchSummary) { summary = s }},
	})
	if err != nil {
		cancel()
		if errors.Is(err, service.ErrBatchInProgress) {
			return utils.SendError(c, fiber.StatusConflict, err.Error())
		}
		logger.Error().Err(err).Msg("failed to start grading batch")
		return utils.SendError(c, fiber.StatusBadGateway, err.Error())
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Batch-ID", batchID)
	c.Status(fiber.StatusOK).Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		total := len(req.Prompts)
		completed := 0
		for result := range results {
			completed++
			if ctx.Err() != nil {
				continue
			}
			if err := writeBatchEvents(w, batchID, result, completed, total); err != nil {
				logger.Warn().Err(err).Int("completed", completed).Msg("client disconnected; finishing batch without output")
				cancel()
			}
		}

		if ctx.Err() == nil {
			response := summary.Response()
			_ = writeLine(w, dto.GradingEvent{
				Type:      dto.GradingEventComplete,
				BatchID:   batchID,
				Completed: summary.Total,
				Total:     summary.Total,
				Percent:   100,
				Summary:   &response,
			})
		}
	})
	return nil
}

func writeBatchEvents(w *bufio.Writer, batchID string, result models.GradingResult, completed, total int) error {
	if err := writeLine(w, dto.GradingEvent{Type: dto.GradingEventResult, BatchID: batchID, Result: &result}); err != nil {
		return err
	}
	return writeLine(w, dto.GradingEvent{
		Type:      dto.GradingEventProgress,
		BatchID:   batchID,
		Completed: completed,
		Total:     total,
		Percent:   service.ProgressPercent(completed, total),
	})
}

func (h *GradingHandler) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	var req dto.GradeBatchRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(dto.GradingEvent{Type: dto.GradingEventError, Message: "invalid request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		_ = conn.WriteJSON(dto.GradingEvent{Type: dto.GradingEventError, Message: validationMessage(err)})
		return
	}

	batchID := uuid.NewString()
	logger := h.logger.With().Str("batch_id", batchID).Str("correlation_id", middleware.CorrelationIDFromContext(baseCtx)).Logger()
	total := len(req.Prompts)
	writeFailed := false

	_, err := h.orchestrator.Run(ctx, service.BatchRun{
		ID:      batchID,
		Config:  batchConfig(ctx, h.cfg, h.settings, req.BatchOverrides),
		Prompts: req.Prompts,
		Observer: service.BatchObserver{
			OnResult: func(result models.GradingResult) {
				if writeFailed {
					return
				}
				if err := conn.WriteJSON(dto.GradingEvent{Type: dto.GradingEventResult, BatchID: batchID, Result: &result}); err != nil {
					writeFailed = true
					cancel()
				}
			},
			OnProgress: func(completed, total int) {
				if writeFailed {
					return
				}
				event := dto.GradingEvent{Type: dto.GradingEventProgress, BatchID: batchID, Completed: completed, Total: total, Percent: service.ProgressPercent(completed, total)}
				if err := conn.WriteJSON(event); err != nil {
					writeFailed = true
					cancel()
				}
			},
			OnComplete: func(summary service.BatchSummary) {
				if writeFailed {
					return
				}
				response := summary.Response()
				_ = conn.WriteJSON(dto.GradingEvent{Type: dto.GradingEventComplete, BatchID: batchID, Completed: summary.Total, Total: summary.Total, Percent: 100, Summary: &response})
			},
		},
	})
	if err != nil {
		_ = conn.WriteJSON(dto.GradingEvent{Type: dto.GradingEventError, BatchID: batchID, Message: err.Error()})
		logger.Warn().Err(err).Msg("websocket grading batch rejected")
		return
	}

	if writeFailed {
		logger.Warn().Int("total", total).Msg("websocket client went away during grading")
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch complete"))
}

func (h *GradingHandler) export(c *fiber.Ctx) error {
	var req dto.ResultsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	payload, err := service.ToCSV(req.Results)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("csv export failed")
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendAttachment(c, "text/csv; charset=utf-8", "grading_results.csv", payload)
}

func (h *GradingHandler) report(c *fiber.Ctx) error {
	var req dto.ResultsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	groups := service.GroupByStudent(req.Results)
	html, err := service.RenderHTML(groups)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("report rendering failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to render report")
	}

	return utils.SendSuccess(c, "grading report", dto.ReportResponse{Students: groups, HTML: html})
}

package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/service"
	"github.com/noah-isme/graderbot/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	LLMProvider string    `json:"llm_provider"`
	Grading     string    `json:"grading"`
}

// HealthCheck reports service health and the state of the grading orchestrator.
func HealthCheck(cfg config.Config, orchestrator service.GradingOrchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			LLMProvider: cfg.LLM.Provider,
			Grading:     string(service.BatchIdle),
		}
		if orchestrator != nil {
			payload.Grading = string(orchestrator.State())
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

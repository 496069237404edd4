package router

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/handler"
	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/observability"
	"github.com/noah-isme/graderbot/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Orchestrator     service.GradingOrchestrator
	CSVUploadHandler *handler.CSVUploadHandler
	GradingHandler   *handler.GradingHandler
	PromptHandler    *handler.PromptHandler
	SettingsHandler  *handler.SettingsHandler
	// BatchRateLimit caps batch starts per client per minute; zero disables it.
	BatchRateLimit int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(nil))

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Orchestrator))

	if deps.CSVUploadHandler != nil {
		deps.CSVUploadHandler.Register(api.Group("/csv"))
	}

	if deps.GradingHandler != nil {
		var guard fiber.Handler
		if deps.BatchRateLimit > 0 {
			guard = middleware.RateLimit("grading-batch", deps.BatchRateLimit, time.Minute)
		}
		deps.GradingHandler.Register(api.Group("/grading"), guard)
	}

	if deps.PromptHandler != nil {
		deps.PromptHandler.Register(api)
	}

	if deps.SettingsHandler != nil {
		deps.SettingsHandler.Register(api.Group("/settings"))
	}

	if cfg.PublicDir != "" {
		if info, err := os.Stat(cfg.PublicDir); err == nil && info.IsDir() {
			app.Static("/", cfg.PublicDir)
		}
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/database"
	"github.com/noah-isme/graderbot/internal/handler"
	"github.com/noah-isme/graderbot/internal/middleware"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/repository"
	"github.com/noah-isme/graderbot/internal/router"
	"github.com/noah-isme/graderbot/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.DebugMode {
		level = zerolog.DebugLevel
	}
	logger = logger.Level(level)

	db, err := database.ConnectSQL(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	promptRepo := repository.NewMemoryPromptRepository()
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		promptRepo = repository.NewRedisPromptRepository(redisClient)
	}

	var publisher service.ProgressPublisher = service.NoopProgressPublisher{}
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		publisher = service.NewProgressPublisher(natsConn, cfg.NATSSubject, logger)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	settingsRepo := repository.NewSettingsRepository(db)

	settingsService := service.NewSettingsService(settingsRepo, logger)
	settingsService.Subscribe(func(event service.SettingsEvent) {
		logger.Debug().Str("key", event.Key).Str("action", string(event.Action)).Msg("setting changed")
	})
	factory := service.NewGeneratorFactory(logger)
	orchestrator := service.NewGradingOrchestrator(factory, publisher, logger)
	intakeService := service.NewCSVIntakeService(cfg.UploadMaxSizeMB, logger)
	promptService := service.NewPromptService(promptRepo, validate, logger)
	generateService := service.NewGenerateService(promptService, factory, logger)

	csvUploadHandler := handler.NewCSVUploadHandler(intakeService, logger)
	gradingHandler := handler.NewGradingHandler(orchestrator, settingsService, cfg, validate, logger)
	promptHandler := handler.NewPromptHandler(promptService, generateService, settingsService, cfg, validate, logger)
	settingsHandler := handler.NewSettingsHandler(settingsService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		// Three CSV files plus the rubric, each up to the per-file limit.
		BodyLimit: (cfg.UploadMaxSizeMB*4 + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.DebugMode})
	router.Register(app, cfg, router.Dependencies{
		Orchestrator:     orchestrator,
		CSVUploadHandler: csvUploadHandler,
		GradingHandler:   gradingHandler,
		PromptHandler:    promptHandler,
		SettingsHandler:  settingsHandler,
		BatchRateLimit:   cfg.BatchRateLimit,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("llm_provider", cfg.LLM.Provider).Str("llm_url", cfg.LLM.URL).Msg("server starting")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

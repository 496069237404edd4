package service

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/pkg/ai"
)

// BatchConfig is sampled once when a batch starts and never re-read during the run.
type BatchConfig struct {
	Provider    string
	Endpoint    string
	Model       string
	APIKey      string
	Stream      bool
	Temperature float64
	NumCtx      int
	Timeout     time.Duration
	Debug       bool
}

// GeneratorFactory builds the LLM client used for one batch.
type GeneratorFactory func(cfg BatchConfig) (ai.Generator, error)

// NewBatchConfig layers, lowest first: static configuration, saved settings,
// then per-request overrides.
func NewBatchConfig(cfg config.Config, settings SettingsSnapshot, overrides dto.BatchOverrides) BatchConfig {
	batch := BatchConfig{
		Provider:    cfg.LLM.Provider,
		Endpoint:    cfg.LLM.URL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		Stream:      cfg.LLM.Stream,
		Temperature: cfg.LLM.Temperature,
		NumCtx:      cfg.LLM.NumCtx,
		Timeout:     cfg.LLM.Timeout,
		Debug:       cfg.DebugMode,
	}

	if settings.LLMURL != "" {
		batch.Endpoint = settings.LLMURL
	}
	if settings.LLMModel != "" {
		batch.Model = settings.LLMModel
	}
	if settings.DebugMode != nil {
		batch.Debug = *settings.DebugMode
	}

	if url := strings.TrimSpace(overrides.LLMURL); url != "" {
		batch.Endpoint = url
	}
	if model := strings.TrimSpace(overrides.Model); model != "" {
		batch.Model = model
	}
	if overrides.DebugMode != nil {
		batch.Debug = *overrides.DebugMode
	}

	return batch
}

// NewGeneratorFactory returns the factory used in production.
func NewGeneratorFactory(logger zerolog.Logger) GeneratorFactory {
	return func(cfg BatchConfig) (ai.Generator, error) {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			generator, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
				APIKey:      cfg.APIKey,
				BaseURL:     cfg.Endpoint,
				Model:       cfg.Model,
				Temperature: float32(cfg.Temperature),
				Timeout:     cfg.Timeout,
				Logger:      logger,
			})
			if err != nil {
				return nil, err
			}
			return generator, nil
		default:
			temperature := cfg.Temperature
			generator, err := ai.NewOllamaGenerator(ai.OllamaConfig{
				Endpoint:    cfg.Endpoint,
				Model:       cfg.Model,
				Stream:      cfg.Stream,
				Temperature: &temperature,
				NumCtx:      cfg.NumCtx,
				Timeout:     cfg.Timeout,
				Logger:      logger,
			})
			if err != nil {
				return nil, err
			}
			return generator, nil
		}
	}
}

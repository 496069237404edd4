package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/graderbot/internal/models"
)

// Supported LLM providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	PublicDir       string
	LogLevel        string
	DebugMode       bool
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	NATSSubject     string
	UploadMaxSizeMB int
	BatchRateLimit  int
	LLM             LLMConfig
}

// LLMConfig describes how grading prompts reach the model.
type LLMConfig struct {
	Provider    string
	URL         string
	Model       string
	APIKey      string
	Stream      bool
	Format      models.PromptFormat
	Temperature float64
	NumCtx      int
	// Timeout of zero leaves individual calls unbounded.
	Timeout time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADERBOT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GraderBot")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("public_dir", "public")
	v.SetDefault("log.level", "info")
	v.SetDefault("debug_mode", false)
	v.SetDefault("database.url", "file:graderbot.db?cache=shared")
	v.SetDefault("nats.subject", "graderbot.grading")
	v.SetDefault("upload.max_size_mb", 5)
	v.SetDefault("rate_limit.batch_per_minute", 30)
	v.SetDefault("llm.provider", ProviderOllama)
	v.SetDefault("llm.url", "http://localhost:11434/api/generate")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.stream", true)
	v.SetDefault("llm.format", string(models.PromptFormatText))
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.num_ctx", 4096)
	v.SetDefault("llm.timeout", "0s")

	timeoutString := strings.TrimSpace(v.GetString("llm.timeout"))
	if timeoutString == "" {
		timeoutString = "0s"
	}
	timeout, err := time.ParseDuration(timeoutString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid llm timeout: %w", err)
	}
	if timeout < 0 {
		return Config{}, fmt.Errorf("llm timeout must not be negative")
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		PublicDir:       v.GetString("public_dir"),
		LogLevel:        strings.ToLower(v.GetString("log.level")),
		DebugMode:       v.GetBool("debug_mode"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		NATSSubject:     v.GetString("nats.subject"),
		UploadMaxSizeMB: v.GetInt("upload.max_size_mb"),
		BatchRateLimit:  v.GetInt("rate_limit.batch_per_minute"),
		LLM: LLMConfig{
			Provider:    strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			URL:         strings.TrimSpace(v.GetString("llm.url")),
			Model:       v.GetString("llm.model"),
			APIKey:      v.GetString("llm.api_key"),
			Stream:      v.GetBool("llm.stream"),
			Format:      models.PromptFormat(strings.ToLower(v.GetString("llm.format"))),
			Temperature: v.GetFloat64("llm.temperature"),
			NumCtx:      v.GetInt("llm.num_ctx"),
			Timeout:     timeout,
		},
	}

	switch cfg.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return Config{}, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}

	if !cfg.LLM.Format.Valid() {
		return Config{}, fmt.Errorf("unsupported llm format %q", cfg.LLM.Format)
	}

	if cfg.LLM.URL == "" {
		return Config{}, fmt.Errorf("llm url must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 5
	}

	if cfg.LLM.NumCtx < 0 {
		cfg.LLM.NumCtx = 0
	}

	return cfg, nil
}

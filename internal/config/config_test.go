package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "GraderBot", cfg.AppName)
	require.Equal(t, ":3000", cfg.HTTPAddress())
	require.Equal(t, ProviderOllama, cfg.LLM.Provider)
	require.Equal(t, "http://localhost:11434/api/generate", cfg.LLM.URL)
	require.Equal(t, models.PromptFormatText, cfg.LLM.Format)
	require.True(t, cfg.LLM.Stream)
	require.Zero(t, cfg.LLM.Timeout)
	require.Equal(t, 5, cfg.UploadMaxSizeMB)
	require.Equal(t, 30, cfg.BatchRateLimit)
	require.False(t, cfg.DebugMode)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GRADERBOT_APP_PORT", ":9090")
	t.Setenv("GRADERBOT_LLM_PROVIDER", "OpenAI")
	t.Setenv("GRADERBOT_LLM_URL", "http://127.0.0.1:11434/v1")
	t.Setenv("GRADERBOT_LLM_FORMAT", "json")
	t.Setenv("GRADERBOT_LLM_STREAM", "false")
	t.Setenv("GRADERBOT_LLM_TIMEOUT", "45s")
	t.Setenv("GRADERBOT_DEBUG_MODE", "true")
	t.Setenv("GRADERBOT_UPLOAD_MAX_SIZE_MB", "0")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	require.Equal(t, models.PromptFormatJSON, cfg.LLM.Format)
	require.False(t, cfg.LLM.Stream)
	require.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	require.True(t, cfg.DebugMode)
	require.Equal(t, 5, cfg.UploadMaxSizeMB)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"GRADERBOT_LLM_PROVIDER": "bard",
		"GRADERBOT_LLM_FORMAT":   "xml",
		"GRADERBOT_LLM_TIMEOUT":  "soon",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(key, value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}

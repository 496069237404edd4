package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/config"
	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/handler"
	"github.com/noah-isme/graderbot/internal/repository"
	"github.com/noah-isme/graderbot/internal/service"
)

func TestPromptHandler_SaveCurrentAndGenerate(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{\"response\":\"4\",\"done\":false}\n{\"response\":\"/5\",\"done\":true}\n"))
	}))
	defer llm.Close()

	cfg := config.Config{LLM: config.LLMConfig{Provider: config.ProviderOllama, URL: llm.URL, Model: "llama3", Stream: true}}
	validate := validator.New()
	prompts := service.NewPromptService(repository.NewMemoryPromptRepository(), validate, zerolog.Nop())
	generate := service.NewGenerateService(prompts, service.NewGeneratorFactory(zerolog.Nop()), zerolog.Nop())

	app := fiber.New()
	handler.NewPromptHandler(prompts, generate, nil, cfg, validate, zerolog.Nop()).Register(app.Group("/api"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/prompts/current", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/generate", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/prompts", dto.SavePromptRequest{}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/prompts", dto.SavePromptRequest{Prompt: "Grade: 4/5?", Format: "text"}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/prompts/current", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	current := decodeEnvelope[dto.PromptResponse](t, resp)
	require.Equal(t, "Grade: 4/5?", current.Data.Prompt)

	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/generate", dto.GenerateRequest{}), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "4/5", string(body))
}

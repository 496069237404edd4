package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/graderbot/internal/service"
	"github.com/noah-isme/graderbot/pkg/ai"
)

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func decodeEnvelope[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	defer resp.Body.Close()
	var out envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return req
}

type replyFunc func(ctx context.Context, req ai.GenerateRequest) (string, error)

func (f replyFunc) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	return f(ctx, req)
}

func factoryFor(generator ai.Generator) service.GeneratorFactory {
	return func(service.BatchConfig) (ai.Generator, error) { return generator, nil }
}

func jsonUnmarshal(line string, out any) error {
	return json.Unmarshal([]byte(line), out)
}

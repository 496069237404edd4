package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenAIGeneratorReturnsFirstChoice(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama3",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " {\"score\": 2, \"maximumScore\": 4} "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: server.URL + "/v1/", Model: "llama3"})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), GenerateRequest{Prompt: "grade", JSON: true})
	require.NoError(t, err)
	require.Equal(t, `{"score": 2, "maximumScore": 4}`, text)

	require.Equal(t, "llama3", received["model"])
	format, ok := received["response_format"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "json_object", format["type"])

	messages, ok := received["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	require.Equal(t, "grade", user["content"])
}

func TestOpenAIGeneratorMapsStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "model busy", "type": "server_error"}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), GenerateRequest{Prompt: "grade"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestNewOpenAIGeneratorRequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIGenerator(OpenAIConfig{})
	require.ErrorIs(t, err, ErrEndpointRequired)
}

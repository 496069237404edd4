package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrEndpointRequired is returned when a generator is built without an endpoint.
var ErrEndpointRequired = errors.New("llm endpoint is required")

// GenerateRequest is a single completion request.
type GenerateRequest struct {
	Prompt string
	// JSON asks the model to constrain its reply to a JSON object.
	JSON bool
}

// Generator turns a prompt into the model's complete reply text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// StreamGenerator additionally exposes reply fragments as they arrive.
type StreamGenerator interface {
	Generator
	GenerateStream(ctx context.Context, req GenerateRequest, onChunk func(string) error) (string, error)
}

// StatusError reports a non-2xx answer from the model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llm endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("llm endpoint returned status %d: %s", e.StatusCode, e.Body)
}

package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultOllamaEndpoint is the generate endpoint of a local Ollama server.
const DefaultOllamaEndpoint = "http://localhost:11434/api/generate"

const providerOllama = "ollama"

// OllamaConfig configures the Ollama generate client.
type OllamaConfig struct {
	Endpoint string
	Model    string
	Stream   bool
	// Temperature is sent only when set.
	Temperature *float64
	NumCtx      int
	// Timeout bounds a single request. Zero means no client-side timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// OllamaGenerator talks to an Ollama-style /api/generate endpoint.
type OllamaGenerator struct {
	cfg    OllamaConfig
	client *http.Client
	tracer trace.Tracer
	logger zerolog.Logger
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumCtx      int      `json:"num_ctx,omitempty"`
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// NewOllamaGenerator validates cfg and builds a generator.
func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &OllamaGenerator{
		cfg:    cfg,
		client: client,
		tracer: otel.Tracer("github.com/noah-isme/graderbot/pkg/ai/ollama"),
		logger: logger.With().Str("component", "ollama_generator").Logger(),
	}, nil
}

// Generate returns the full reply, reading a stream of fragments when streaming is enabled.
func (g *OllamaGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return g.GenerateStream(ctx, req, nil)
}

// GenerateStream sends the prompt and calls onChunk for every reply fragment.
// Without streaming the single reply is delivered as one fragment.
func (g *OllamaGenerator) GenerateStream(parent context.Context, req GenerateRequest, onChunk func(string) error) (string, error) {
	ctx, span := g.tracer.Start(parent, "ollama.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Bool("stream", g.cfg.Stream),
	))
	defer span.End()

	start := time.Now()
	text, err := g.do(ctx, req, onChunk)
	llmDuration.WithLabelValues(providerOllama, g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		llmFailures.WithLabelValues(providerOllama, g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Debug().Err(err).Str("endpoint", g.cfg.Endpoint).Msg("generate request failed")
		return "", err
	}

	span.SetAttributes(attribute.Int("response_length", len(text)))
	return text, nil
}

func (g *OllamaGenerator) do(ctx context.Context, req GenerateRequest, onChunk func(string) error) (string, error) {
	payload := ollamaRequest{
		Model:  g.cfg.Model,
		Prompt: req.Prompt,
		Stream: g.cfg.Stream,
	}
	if req.JSON {
		payload.Format = "json"
	}
	if g.cfg.Temperature != nil || g.cfg.NumCtx > 0 {
		payload.Options = &ollamaOptions{Temperature: g.cfg.Temperature, NumCtx: g.cfg.NumCtx}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.Debug().Str("endpoint", g.cfg.Endpoint).Int("prompt_length", len(req.Prompt)).Msg("sending generate request")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if !g.cfg.Stream {
		var decoded ollamaResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return "", fmt.Errorf("parse generate response: %w", err)
		}
		if decoded.Error != "" {
			return "", fmt.Errorf("llm error: %s", decoded.Error)
		}
		if onChunk != nil && decoded.Response != "" {
			if err := onChunk(decoded.Response); err != nil {
				return "", err
			}
		}
		return decoded.Response, nil
	}

	return readStream(resp.Body, onChunk)
}

// readStream concatenates newline-delimited JSON fragments until done or EOF.
func readStream(body io.Reader, onChunk func(string) error) (string, error) {
	reader := bufio.NewReader(body)
	var out strings.Builder

	for {
		line, readErr := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var chunk ollamaResponse
			if err := json.Unmarshal(trimmed, &chunk); err != nil {
				return "", fmt.Errorf("parse stream chunk: %w", err)
			}
			if chunk.Error != "" {
				return "", fmt.Errorf("llm error: %s", chunk.Error)
			}
			if chunk.Response != "" {
				out.WriteString(chunk.Response)
				if onChunk != nil {
					if err := onChunk(chunk.Response); err != nil {
						return "", err
					}
				}
			}
			if chunk.Done {
				return out.String(), nil
			}
		}

		if errors.Is(readErr, io.EOF) {
			return out.String(), nil
		}
		if readErr != nil {
			return "", fmt.Errorf("read stream: %w", readErr)
		}
	}
}

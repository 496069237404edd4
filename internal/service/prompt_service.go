package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/repository"
	"github.com/noah-isme/graderbot/pkg/ai"
)

// ErrPromptNotFound is returned before any prompt has been saved.
var ErrPromptNotFound = repository.ErrPromptNotFound

// PromptService stores the prompt used by the generate flow.
type PromptService interface {
	Save(ctx context.Context, req dto.SavePromptRequest) (dto.PromptResponse, error)
	Current(ctx context.Context) (dto.PromptResponse, error)
}

type promptService struct {
	repo      repository.PromptRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPromptService constructs a prompt service.
func NewPromptService(repo repository.PromptRepository, validate *validator.Validate, logger zerolog.Logger) PromptService {
	return &promptService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "prompt_service").Logger(),
		now:       time.Now,
	}
}

func (s *promptService) Save(ctx context.Context, req dto.SavePromptRequest) (dto.PromptResponse, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := s.validator.Struct(req); err != nil {
		return dto.PromptResponse{}, err
	}

	format := models.PromptFormat(req.Format)
	if !format.Valid() {
		format = models.PromptFormatText
	}

	record := models.PromptRecord{Prompt: req.Prompt, Format: format, SavedAt: s.now().UTC()}
	if err := s.repo.Save(ctx, record); err != nil {
		return dto.PromptResponse{}, err
	}

	s.logger.Debug().Int("length", len(record.Prompt)).Str("format", string(format)).Msg("prompt saved")
	return dto.NewPromptResponse(record), nil
}

func (s *promptService) Current(ctx context.Context) (dto.PromptResponse, error) {
	record, err := s.repo.Current(ctx)
	if err != nil {
		return dto.PromptResponse{}, err
	}
	return dto.NewPromptResponse(record), nil
}

// GenerateService replays the saved prompt against the model.
type GenerateService interface {
	Stream(ctx context.Context, cfg BatchConfig, onChunk func(string) error) (string, error)
}

type generateService struct {
	prompts PromptService
	factory GeneratorFactory
	logger  zerolog.Logger
}

// NewGenerateService constructs a generate service.
func NewGenerateService(prompts PromptService, factory GeneratorFactory, logger zerolog.Logger) GenerateService {
	return &generateService{
		prompts: prompts,
		factory: factory,
		logger:  logger.With().Str("component", "generate_service").Logger(),
	}
}

// Stream forwards reply fragments to onChunk as they arrive when the client
// supports it; otherwise the complete reply is sent as a single fragment.
func (s *generateService) Stream(ctx context.Context, cfg BatchConfig, onChunk func(string) error) (string, error) {
	current, err := s.prompts.Current(ctx)
	if err != nil {
		return "", err
	}

	generator, err := s.factory(cfg)
	if err != nil {
		return "", err
	}

	req := ai.GenerateRequest{Prompt: current.Prompt, JSON: current.Format == string(models.PromptFormatJSON)}
	if cfg.Debug {
		s.logger.Info().Str("endpoint", cfg.Endpoint).Str("model", cfg.Model).Msg("generating from saved prompt")
	}

	if streamer, ok := generator.(ai.StreamGenerator); ok {
		return streamer.GenerateStream(ctx, req, onChunk)
	}

	reply, err := generator.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		if err := onChunk(reply); err != nil {
			return reply, err
		}
	}
	return reply, nil
}

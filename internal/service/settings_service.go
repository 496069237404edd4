package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/graderbot/internal/dto"
	"github.com/noah-isme/graderbot/internal/models"
	"github.com/noah-isme/graderbot/internal/repository"
)

var (
	// ErrUnknownSetting indicates the key is not one the store accepts.
	ErrUnknownSetting = errors.New("unknown setting key")
	// ErrInvalidSettingValue indicates the value has the wrong shape for its key.
	ErrInvalidSettingValue = errors.New("invalid setting value")
	// ErrSettingNotFound indicates nothing is stored under the key.
	ErrSettingNotFound = repository.ErrSettingNotFound
)

// SettingsAction names a change to the settings store.
type SettingsAction string

const (
	SettingSaved   SettingsAction = "save"
	SettingDeleted SettingsAction = "delete"
)

// SettingsEvent describes one change. Value is nil for deletions.
type SettingsEvent struct {
	Action SettingsAction
	Key    string
	Value  json.RawMessage
}

// SettingsObserver is notified synchronously after each change.
type SettingsObserver func(event SettingsEvent)

// SettingsSnapshot is the typed view of the store read once per batch.
type SettingsSnapshot struct {
	LLMURL             string
	LLMModel           string
	DebugMode          *bool
	Senate             string
	Department         string
	Course             string
	OnboardingComplete bool
}

// SettingsService manages instructor preferences.
type SettingsService interface {
	Save(ctx context.Context, key string, value json.RawMessage) (dto.SettingResponse, error)
	Load(ctx context.Context, key string) (dto.SettingResponse, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]dto.SettingResponse, error)
	Snapshot(ctx context.Context) SettingsSnapshot
	Subscribe(observer SettingsObserver) (unsubscribe func())
}

type settingsService struct {
	repo      repository.SettingsRepository
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger

	mu        sync.RWMutex
	observers map[int]SettingsObserver
	nextID    int
}

// NewSettingsService constructs a settings service.
func NewSettingsService(repo repository.SettingsRepository, logger zerolog.Logger) SettingsService {
	return &settingsService{
		repo:      repo,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "settings_service").Logger(),
		observers: make(map[int]SettingsObserver),
	}
}

func (s *settingsService) Save(ctx context.Context, key string, value json.RawMessage) (dto.SettingResponse, error) {
	key = strings.TrimSpace(key)
	normalised, err := s.normalise(key, value)
	if err != nil {
		return dto.SettingResponse{}, err
	}

	setting := models.Setting{Key: key, Value: datatypes.JSON(normalised)}
	if err := s.repo.Upsert(ctx, &setting); err != nil {
		return dto.SettingResponse{}, fmt.Errorf("save setting %s: %w", key, err)
	}

	stored, err := s.repo.Get(ctx, key)
	if err != nil {
		return dto.SettingResponse{}, fmt.Errorf("reload setting %s: %w", key, err)
	}

	s.logger.Debug().Str("key", key).Msg("setting saved")
	s.notify(SettingsEvent{Action: SettingSaved, Key: key, Value: json.RawMessage(normalised)})
	return dto.NewSettingResponse(stored), nil
}

func (s *settingsService) Load(ctx context.Context, key string) (dto.SettingResponse, error) {
	key = strings.TrimSpace(key)
	if !slices.Contains(models.SettingKeys, key) {
		return dto.SettingResponse{}, ErrUnknownSetting
	}
	stored, err := s.repo.Get(ctx, key)
	if err != nil {
		return dto.SettingResponse{}, err
	}
	return dto.NewSettingResponse(stored), nil
}

func (s *settingsService) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if !slices.Contains(models.SettingKeys, key) {
		return ErrUnknownSetting
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Debug().Str("key", key).Msg("setting deleted")
	s.notify(SettingsEvent{Action: SettingDeleted, Key: key})
	return nil
}

func (s *settingsService) List(ctx context.Context) ([]dto.SettingResponse, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.SettingResponse, 0, len(stored))
	for _, setting := range stored {
		responses = append(responses, dto.NewSettingResponse(setting))
	}
	return responses, nil
}

// Snapshot never fails; unreadable or missing values leave the field empty.
func (s *settingsService) Snapshot(ctx context.Context) SettingsSnapshot {
	var snapshot SettingsSnapshot
	stored, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read settings snapshot")
		return snapshot
	}

	for _, setting := range stored {
		raw := []byte(setting.Value)
		switch setting.Key {
		case models.SettingLLMURL:
			_ = json.Unmarshal(raw, &snapshot.LLMURL)
		case models.SettingLLMModel:
			_ = json.Unmarshal(raw, &snapshot.LLMModel)
		case models.SettingDebugMode:
			var debug bool
			if json.Unmarshal(raw, &debug) == nil {
				snapshot.DebugMode = &debug
			}
		case models.SettingSenate:
			_ = json.Unmarshal(raw, &snapshot.Senate)
		case models.SettingDepartment:
			_ = json.Unmarshal(raw, &snapshot.Department)
		case models.SettingCourse:
			_ = json.Unmarshal(raw, &snapshot.Course)
		case models.SettingOnboardingComplete:
			_ = json.Unmarshal(raw, &snapshot.OnboardingComplete)
		}
	}
	return snapshot
}

func (s *settingsService) Subscribe(observer SettingsObserver) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = observer
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *settingsService) notify(event SettingsEvent) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]SettingsObserver, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.mu.RUnlock()

	for _, observer := range observers {
		observer(event)
	}
}

// normalise checks the value against its key and returns the JSON to store.
func (s *settingsService) normalise(key string, value json.RawMessage) ([]byte, error) {
	if !slices.Contains(models.SettingKeys, key) {
		return nil, ErrUnknownSetting
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("%w: value is required", ErrInvalidSettingValue)
	}

	switch key {
	case models.SettingDebugMode, models.SettingOnboardingComplete:
		var flag bool
		if err := json.Unmarshal(value, &flag); err != nil {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidSettingValue, key)
		}
		return json.Marshal(flag)
	case models.SettingLLMURL:
		var raw string
		if err := json.Unmarshal(value, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidSettingValue, key)
		}
		parsed, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("%w: %s must be an absolute URL", ErrInvalidSettingValue, key)
		}
		return json.Marshal(parsed.String())
	default:
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidSettingValue, key)
		}
		return json.Marshal(strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text))))
	}
}

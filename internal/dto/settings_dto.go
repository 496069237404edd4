package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/graderbot/internal/models"
)

// SettingUpdateRequest stores an arbitrary JSON value under a key.
type SettingUpdateRequest struct {
	Value json.RawMessage `json:"value" validate:"required"`
}

// SettingResponse is the API view of a stored setting.
type SettingResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSettingResponse converts a persisted setting.
func NewSettingResponse(model models.Setting) SettingResponse {
	return SettingResponse{
		Key:       model.Key,
		Value:     json.RawMessage(model.Value),
		UpdatedAt: model.UpdatedAt,
	}
}

// SavePromptRequest persists a compiled prompt for the generate flow.
type SavePromptRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Format string `json:"format" validate:"omitempty,oneof=text json"`
}

// PromptResponse describes the saved prompt.
type PromptResponse struct {
	Prompt  string    `json:"prompt"`
	Format  string    `json:"format"`
	SavedAt time.Time `json:"saved_at"`
}

// NewPromptResponse converts a stored prompt record.
func NewPromptResponse(record models.PromptRecord) PromptResponse {
	return PromptResponse{
		Prompt:  record.Prompt,
		Format:  string(record.Format),
		SavedAt: record.SavedAt,
	}
}

// GenerateRequest streams a completion for the saved prompt.
type GenerateRequest struct {
	BatchOverrides
}

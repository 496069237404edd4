package models

import (
	"time"

	"gorm.io/datatypes"
)

// Known setting keys.
const (
	SettingLLMURL             = "llm-url"
	SettingLLMModel           = "llm-model"
	SettingDebugMode          = "debug-mode"
	SettingSenate             = "senate"
	SettingDepartment         = "department"
	SettingCourse             = "course"
	SettingOnboardingComplete = "onboarding-complete"
)

// SettingKeys lists every key the settings store accepts.
var SettingKeys = []string{
	SettingLLMURL,
	SettingLLMModel,
	SettingDebugMode,
	SettingSenate,
	SettingDepartment,
	SettingCourse,
	SettingOnboardingComplete,
}

// Setting is a single persisted instructor preference.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:64" json:"key"`
	Value     datatypes.JSON `gorm:"type:json" json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PromptRecord is the single saved prompt used by the generate flow.
type PromptRecord struct {
	Prompt  string       `json:"prompt"`
	Format  PromptFormat `json:"format"`
	SavedAt time.Time    `json:"saved_at"`
}

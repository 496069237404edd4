package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/graderbot/internal/models"
)

// ErrSettingNotFound is returned when no value is stored under a key.
var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository persists instructor preferences.
type SettingsRepository interface {
	Upsert(ctx context.Context, setting *models.Setting) error
	Get(ctx context.Context, key string) (models.Setting, error)
	List(ctx context.Context) ([]models.Setting, error)
	Delete(ctx context.Context, key string) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository constructs a gorm-backed settings repository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
}

func (r *settingsRepository) Get(ctx context.Context, key string) (models.Setting, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Setting{}, ErrSettingNotFound
	}
	return setting, err
}

func (r *settingsRepository) List(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error; err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingsRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}

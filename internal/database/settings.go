package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/kiddies/internal/models"
)

// GetSetting retrieves a setting by key. Returns nil when not found.
func GetSetting(ctx context.Context, db *gorm.DB, key string) (*models.Setting, error) {
	if db == nil {
		return nil, fmt.Errorf("settings: db is nil")
	}

	var setting models.Setting
	err := db.WithContext(ctx).Where(keyEquals(key)).Take(&setting).Error
	if err == nil {
		return &setting, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("settings: get %q: %w", key, err)
}

// UpsertSetting stores or replaces a setting value, recording who changed it.
func UpsertSetting(ctx context.Context, db *gorm.DB, key string, value datatypes.JSON, updatedBy string) (*models.Setting, error) {
	if db == nil {
		return nil, fmt.Errorf("settings: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("settings: key is required")
	}

	record := models.Setting{
		Key:   key,
		Value: value,
	}
	if updatedBy != "" {
		record.UpdatedBy = &updatedBy
	}

	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("settings: upsert %q: %w", key, err)
	}

	return GetSetting(ctx, db, key)
}

// DeleteSetting removes a setting. Deleting a missing key is not an error.
func DeleteSetting(ctx context.Context, db *gorm.DB, key string) error {
	if db == nil {
		return fmt.Errorf("settings: db is nil")
	}
	if err := db.WithContext(ctx).Where(keyEquals(key)).Delete(&models.Setting{}).Error; err != nil {
		return fmt.Errorf("settings: delete %q: %w", key, err)
	}
	return nil
}

// keyEquals quotes the column name, which is reserved in MySQL.
func keyEquals(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}

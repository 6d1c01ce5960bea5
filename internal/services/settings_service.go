package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/models"
)

const logoPrefix = "data:image/"

// SettingsService stores the organisation settings. The services, motto and logo keys have
// fixed shapes and are validated on write; other keys hold arbitrary JSON.
type SettingsService struct {
	db *gorm.DB
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(db *gorm.DB) (*SettingsService, error) {
	if db == nil {
		return nil, errors.New("settings service: db is required")
	}
	return &SettingsService{db: db}, nil
}

// Services returns the configured services or the defaults when none are stored.
func (s *SettingsService) Services(ctx context.Context) ([]database.ServiceSlot, error) {
	var slots []database.ServiceSlot
	found, err := s.decode(ensureContext(ctx), database.SettingServices, &slots)
	if err != nil {
		return nil, err
	}
	if !found || len(slots) == 0 {
		return database.DefaultServices(), nil
	}
	return slots, nil
}

// Service finds a configured service by id.
func (s *SettingsService) Service(ctx context.Context, id string) (*database.ServiceSlot, error) {
	slots, err := s.Services(ctx)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	for i := range slots {
		if slots[i].ID == id {
			return &slots[i], nil
		}
	}
	return nil, nil
}

// UpdateServices replaces the service list. Every entry needs an id, name and time.
func (s *SettingsService) UpdateServices(ctx context.Context, slots []database.ServiceSlot, updatedBy string) ([]database.ServiceSlot, error) {
	if len(slots) == 0 {
		return nil, validationError("Services must be a non-empty list")
	}

	cleaned := make([]database.ServiceSlot, 0, len(slots))
	seen := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		slot.ID = strings.TrimSpace(slot.ID)
		slot.Name = strings.TrimSpace(slot.Name)
		slot.Time = strings.TrimSpace(slot.Time)
		if slot.ID == "" || slot.Name == "" || slot.Time == "" {
			return nil, validationError("Each service must have id, name, and time")
		}
		if _, dup := seen[slot.ID]; dup {
			return nil, validationError(fmt.Sprintf("Duplicate service id %q", slot.ID))
		}
		seen[slot.ID] = struct{}{}
		cleaned = append(cleaned, slot)
	}

	if err := s.encode(ensureContext(ctx), database.SettingServices, cleaned, updatedBy); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// Motto returns the display motto, falling back to the default.
func (s *SettingsService) Motto(ctx context.Context) (string, error) {
	var motto string
	found, err := s.decode(ensureContext(ctx), database.SettingMotto, &motto)
	if err != nil {
		return "", err
	}
	if !found || strings.TrimSpace(motto) == "" {
		return database.DefaultMotto, nil
	}
	return motto, nil
}

// UpdateMotto stores a trimmed, non-blank motto.
func (s *SettingsService) UpdateMotto(ctx context.Context, motto, updatedBy string) (string, error) {
	motto = strings.TrimSpace(motto)
	if motto == "" {
		return "", validationError("Motto must be a non-empty string")
	}
	if err := s.encode(ensureContext(ctx), database.SettingMotto, motto, updatedBy); err != nil {
		return "", err
	}
	return motto, nil
}

// Logo returns the logo data URL, or nil when none is set.
func (s *SettingsService) Logo(ctx context.Context) (*string, error) {
	var logo string
	found, err := s.decode(ensureContext(ctx), database.SettingLogo, &logo)
	if err != nil {
		return nil, err
	}
	if !found || logo == "" {
		return nil, nil
	}
	return &logo, nil
}

// UpdateLogo stores an image data URL. An empty value removes the logo.
func (s *SettingsService) UpdateLogo(ctx context.Context, logo, updatedBy string) (*string, error) {
	ctx = ensureContext(ctx)

	logo = strings.TrimSpace(logo)
	if logo == "" {
		if err := database.DeleteSetting(ctx, s.db, database.SettingLogo); err != nil {
			return nil, internalError(err)
		}
		return nil, nil
	}
	if !strings.HasPrefix(logo, logoPrefix) {
		return nil, validationError("Logo must be a data:image URL")
	}
	if err := s.encode(ctx, database.SettingLogo, logo, updatedBy); err != nil {
		return nil, err
	}
	return &logo, nil
}

// Get returns the raw setting stored under key.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("Setting key is required")
	}

	setting, err := database.GetSetting(ensureContext(ctx), s.db, key)
	if err != nil {
		return nil, internalError(err)
	}
	if setting == nil {
		return nil, ErrSettingNotFound
	}
	return setting, nil
}

// Put stores a JSON value under key. Typed keys are validated as by their dedicated setters.
func (s *SettingsService) Put(ctx context.Context, key string, value json.RawMessage, updatedBy string) (*models.Setting, error) {
	ctx = ensureContext(ctx)

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, validationError("Setting key is required")
	}
	if len(value) == 0 || !json.Valid(value) {
		return nil, validationError("Setting value must be valid JSON")
	}

	var err error
	switch key {
	case database.SettingServices:
		var slots []database.ServiceSlot
		if err = json.Unmarshal(value, &slots); err != nil {
			return nil, validationError("Services must be a list of {id, name, time}")
		}
		_, err = s.UpdateServices(ctx, slots, updatedBy)
	case database.SettingMotto:
		var motto string
		if err = json.Unmarshal(value, &motto); err != nil {
			return nil, validationError("Motto must be a non-empty string")
		}
		_, err = s.UpdateMotto(ctx, motto, updatedBy)
	case database.SettingLogo:
		var logo string
		if err = json.Unmarshal(value, &logo); err != nil {
			return nil, validationError("Logo must be a data:image URL")
		}
		if strings.TrimSpace(logo) == "" {
			return nil, validationError("Logo must be a data:image URL")
		}
		_, err = s.UpdateLogo(ctx, logo, updatedBy)
	default:
		if _, err = database.UpsertSetting(ctx, s.db, key, datatypes.JSON(value), updatedBy); err != nil {
			err = internalError(err)
		}
	}
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, key)
}

func (s *SettingsService) decode(ctx context.Context, key string, dest any) (bool, error) {
	setting, err := database.GetSetting(ctx, s.db, key)
	if err != nil {
		return false, internalError(err)
	}
	if setting == nil {
		return false, nil
	}
	if err := json.Unmarshal(setting.Value, dest); err != nil {
		return false, internalError(fmt.Errorf("settings service: decode %q: %w", key, err))
	}
	return true, nil
}

func (s *SettingsService) encode(ctx context.Context, key string, value any, updatedBy string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return internalError(fmt.Errorf("settings service: encode %q: %w", key, err))
	}
	if _, err := database.UpsertSetting(ctx, s.db, key, datatypes.JSON(payload), updatedBy); err != nil {
		return internalError(err)
	}
	return nil
}

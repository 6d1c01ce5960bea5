package database

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/kiddies/internal/models"
)

// Setting keys with typed values.
const (
	SettingServices = "services"
	SettingMotto    = "motto"
	SettingLogo     = "logo"
)

// DefaultMotto is shown until an administrator sets one.
const DefaultMotto = "Counting God's Army"

// ServiceSlot describes one recurring church service.
type ServiceSlot struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Time string `json:"time"`
}

// DefaultServices lists the services offered before any are configured.
func DefaultServices() []ServiceSlot {
	return []ServiceSlot{
		{ID: "1", Name: "1st Service", Time: "7:00 AM"},
		{ID: "2", Name: "2nd Service", Time: "9:00 AM"},
		{ID: "3", Name: "3rd Service", Time: "11:00 AM"},
		{ID: "4", Name: "Evening Service", Time: "5:00 PM"},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Invite{},
		&models.Census{},
		&models.Setting{},
		&models.BootstrapMarker{},
		&models.CacheEntry{},
	)
}

// SeedData stores the default services and motto when they are absent. Existing values are kept.
func SeedData(db *gorm.DB) error {
	services, err := json.Marshal(DefaultServices())
	if err != nil {
		return err
	}
	motto, err := json.Marshal(DefaultMotto)
	if err != nil {
		return err
	}

	defaults := []models.Setting{
		{Key: SettingServices, Value: datatypes.JSON(services)},
		{Key: SettingMotto, Value: datatypes.JSON(motto)},
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&defaults).Error
}

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel carries the identifier and timestamps shared by every table.
// IDs are UUIDv7 so primary keys sort by creation time.
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate assigns an ID unless the caller supplied one.
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	if m.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("models: generate id: %w", err)
	}
	m.ID = id.String()
	return nil
}

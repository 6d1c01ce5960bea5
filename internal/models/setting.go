package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting persists an organisation-wide JSON value under a unique key.
type Setting struct {
	Key       string         `gorm:"primaryKey;size:128" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedBy *string        `gorm:"type:uuid" json:"updatedBy,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

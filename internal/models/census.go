package models

import (
	"time"

	"gorm.io/datatypes"
)

// AgeBracket is the head count for one age range within a census record.
type AgeBracket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Census is an append-only attendance record for one service on one calendar day.
type Census struct {
	BaseModel

	Date time.Time `gorm:"not null" json:"date"`
	// Day is the YYYY-MM-DD key of Date in the reference time zone; range queries use it.
	Day string `gorm:"size:10;not null;index" json:"day"`

	Service     string `gorm:"not null;index" json:"service"`
	ServiceID   string `gorm:"size:64" json:"serviceId,omitempty"`
	ServiceName string `json:"serviceName,omitempty"`
	ServiceTime string `json:"serviceTime,omitempty"`

	AgeBrackets datatypes.JSONSlice[AgeBracket] `gorm:"not null" json:"ageBrackets"`
	Teachers    datatypes.JSONSlice[string]     `gorm:"not null" json:"teachers"`

	Offering  float64 `gorm:"not null;default:0" json:"offering"`
	Tithe     float64 `gorm:"not null;default:0" json:"tithe"`
	TotalKids int     `gorm:"not null;default:0" json:"totalKids"`

	CreatedBy string `gorm:"type:uuid;index;not null" json:"createdById"`
	Creator   *User  `gorm:"foreignKey:CreatedBy" json:"createdBy,omitempty"`
}

// TableName keeps the plural form used by the reporting queries.
func (Census) TableName() string {
	return "census_records"
}

// BracketTotal sums the bracket counts.
func (c *Census) BracketTotal() int {
	total := 0
	for _, bracket := range c.AgeBrackets {
		total += bracket.Count
	}
	return total
}

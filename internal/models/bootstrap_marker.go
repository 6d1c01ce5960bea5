package models

import "time"

// BootstrapAdminKey names the marker claimed by the first administrator.
const BootstrapAdminKey = "admin"

// BootstrapMarker is a singleton row claimed with an insert-if-absent when the first
// administrator is created. Its primary key guarantees a single winner.
type BootstrapMarker struct {
	Key       string    `gorm:"primaryKey;size:32"`
	UserID    string    `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

package models

import "time"

// CacheEntry is one row of the SQL fallback cache. Counters live in Hits and
// plain values in Value; a zero ExpiresAt never expires.
type CacheEntry struct {
	Key       string `gorm:"primaryKey;size:256"`
	Value     []byte
	Hits      int64     `gorm:"not null;default:0"`
	ExpiresAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Live reports whether the entry is still valid at now.
func (e CacheEntry) Live(now time.Time) bool {
	return e.ExpiresAt.IsZero() || now.Before(e.ExpiresAt)
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/kiddies/internal/models"
)

const defaultWindow = time.Minute

// DatabaseStore keeps cache entries in the cache_entries table. It serves
// single-instance deployments that run without Redis.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore returns nil when db is nil.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	if db == nil {
		return nil
	}
	return &DatabaseStore{db: db, now: time.Now}
}

var keyColumn = clause.Column{Name: "key"}

// IncrementWithTTL bumps the counter under key with a single upsert. An expired
// row restarts at one with a fresh window.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, ErrNotInitialised
	}
	if window <= 0 {
		window = defaultWindow
	}

	now := s.now()
	fresh := now.Add(window)

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// hits is assigned before expires_at because MySQL evaluates assignments in order.
		upsert := clause.OnConflict{
			Columns: []clause.Column{keyColumn},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "hits"}, Value: gorm.Expr("CASE WHEN cache_entries.expires_at <= ? THEN 1 ELSE cache_entries.hits + 1 END", now)},
				{Column: clause.Column{Name: "expires_at"}, Value: gorm.Expr("CASE WHEN cache_entries.expires_at <= ? THEN ? ELSE cache_entries.expires_at END", now, fresh)},
				{Column: clause.Column{Name: "updated_at"}, Value: now},
			},
		}
		row := models.CacheEntry{Key: key, Hits: 1, ExpiresAt: fresh, UpdatedAt: now}
		if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
			return err
		}
		return tx.Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error
	})
	if err != nil {
		return 0, 0, fmt.Errorf("cache: increment %s: %w", key, err)
	}

	return entry.Hits, entry.ExpiresAt.Sub(now), nil
}

// Set upserts value under key.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return ErrNotInitialised
	}

	now := s.now()
	entry := models.CacheEntry{Key: key, Value: value, UpdatedAt: now}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{keyColumn},
			DoUpdates: clause.AssignmentColumns([]string{"value", "hits", "expires_at", "updated_at"}),
		}).
		Create(&entry).Error
}

// Get returns the live value under key. Expired rows read as absent and are
// left for PurgeExpired.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, ErrNotInitialised
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where(clause.Eq{Column: keyColumn, Value: key}).Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	case !entry.Live(s.now()):
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Delete removes keys. Unknown keys are ignored.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return ErrNotInitialised
	}
	if len(keys) == 0 {
		return nil
	}

	values := make([]any, len(keys))
	for i, key := range keys {
		values[i] = key
	}
	return s.db.WithContext(ctx).
		Where(clause.IN{Column: keyColumn, Values: values}).
		Delete(&models.CacheEntry{}).Error
}

// PurgeExpired deletes rows whose expiry is at or before now and reports how many went.
func (s *DatabaseStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil {
		return 0, ErrNotInitialised
	}

	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, now).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("cache: purge expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

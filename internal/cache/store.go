package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotInitialised is returned by methods called on a nil store.
var ErrNotInitialised = errors.New("cache: store not initialised")

// Counter counts hits in fixed windows. The window opens with the first hit
// and later hits never extend it.
type Counter interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Values keeps opaque values with an optional expiry. A ttl of zero keeps the
// value until it is deleted.
type Values interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Store is implemented by every cache backend.
type Store interface {
	Counter
	Values
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*DatabaseStore)(nil)
)

// GetJSON decodes the value stored under key into dst. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, values Values, key string, dst any) (bool, error) {
	raw, found, err := values.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores the JSON encoding of v under key.
func SetJSON(ctx context.Context, values Values, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return values.Set(ctx, key, raw, ttl)
}

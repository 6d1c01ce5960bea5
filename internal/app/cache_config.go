package app

import (
	"strings"

	"github.com/charlesng35/kiddies/internal/cache"
)

// RedisClientConfig maps the redis section onto cache.RedisConfig.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	r := c.Redis
	return cache.RedisConfig{
		Address:   strings.TrimSpace(r.Address),
		Username:  strings.TrimSpace(r.Username),
		Password:  r.Password,
		DB:        r.DB,
		TLS:       r.TLS,
		Timeout:   r.Timeout,
		PoolSize:  r.PoolSize,
		KeyPrefix: strings.TrimSpace(r.KeyPrefix),
	}
}

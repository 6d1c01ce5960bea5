package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection parameters of the Redis store.
type RedisConfig struct {
	Address   string
	Username  string
	Password  string
	DB        int
	TLS       bool
	Timeout   time.Duration
	PoolSize  int
	KeyPrefix string
}

const (
	defaultRedisTimeout = 5 * time.Second
	defaultKeyPrefix    = "kiddies:"
)

// incrementScript increments KEYS[1] and arms its expiry on the first hit, so
// the counter and its window are created atomically.
var incrementScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

// RedisStore implements Store on go-redis. Every key is written under prefix.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects and pings Redis so a bad address fails startup.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return &RedisStore{client: client, prefix: cfg.prefix()}, nil
}

// NewRedisStoreFromClient wraps an existing client using the default key prefix.
func NewRedisStoreFromClient(client redis.UniversalClient) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client, prefix: defaultKeyPrefix}
}

func (cfg RedisConfig) options() (*redis.Options, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, errors.New("redis: address is required")
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("redis: address %q: %w", addr, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}

	opts := &redis.Options{
		Addr:         addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

func (cfg RedisConfig) prefix() string {
	if p := strings.TrimSpace(cfg.KeyPrefix); p != "" {
		return p
	}
	return defaultKeyPrefix
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return ErrNotInitialised
	}
	return s.client.Ping(ctx).Err()
}

// IncrementWithTTL returns the hit count of key and the time left in its window.
func (s *RedisStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = defaultWindow
	}

	reply, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: increment %s: %w", key, err)
	}
	if len(reply) != 2 {
		return 0, 0, fmt.Errorf("redis: increment %s: unexpected reply %v", key, reply)
	}
	return reply[0], time.Duration(reply[1]) * time.Millisecond, nil
}

// Set stores value under key. A non-positive ttl keeps it until deleted.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Get reports whether key exists along with its value.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(key)
	}
	return s.client.Del(ctx, full...).Err()
}

func (s *RedisStore) key(key string) string {
	if strings.HasPrefix(key, s.prefix) {
		return key
	}
	return s.prefix + key
}

package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Kiddies backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	Invites     InviteConfig      `mapstructure:"invites"`
	Census      CensusConfig      `mapstructure:"census"`
	Bootstrap   BootstrapConfig   `mapstructure:"bootstrap"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// MaintenanceConfig holds the cron specs of background jobs. An empty spec
// disables the job.
type MaintenanceConfig struct {
	CachePurge string `mapstructure:"cache_purge"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `mapstructure:"port"`
	LogLevel    string   `mapstructure:"log_level"`
	LogFile     string   `mapstructure:"log_file"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// FrontendURL is the base of the onboarding links sent in invite emails.
	FrontendURL string `mapstructure:"frontend_url"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver             string            `mapstructure:"driver"`
	Path               string            `mapstructure:"path"`
	DSN                string            `mapstructure:"dsn"`
	Options            map[string]string `mapstructure:"options"`
	MaxOpenConns       int               `mapstructure:"max_open_conns"`
	ConnMaxLifetime    time.Duration     `mapstructure:"conn_max_lifetime"`
	SlowQueryThreshold time.Duration     `mapstructure:"slow_query_threshold"`
	Postgres           DBAuthConfig      `mapstructure:"postgres"`
	MySQL              DBAuthConfig      `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
	PoolSize int           `mapstructure:"pool_size"`
	// KeyPrefix namespaces every key written by this deployment.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT       JWTSettings       `mapstructure:"jwt"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
	TTL      time.Duration `mapstructure:"access_token_ttl"`
	// Leeway tolerates clock skew when checking exp and nbf.
	Leeway time.Duration `mapstructure:"leeway"`
}

// RateLimitSettings bounds login and registration attempts per client address.
type RateLimitSettings struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// InviteConfig tunes invite tokens.
type InviteConfig struct {
	Expiry     time.Duration `mapstructure:"expiry"`
	TokenBytes int           `mapstructure:"token_bytes"`
}

// CensusConfig sets the reference time zone used to bucket records into days and how long
// dashboard stats stay cached.
type CensusConfig struct {
	Timezone          string        `mapstructure:"timezone"`
	DashboardCacheTTL time.Duration `mapstructure:"dashboard_cache_ttl"`
}

// BootstrapConfig names the address invited at startup while no account exists.
type BootstrapConfig struct {
	AdminEmail string `mapstructure:"admin_email"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A .env file in the working directory, or next to the given paths, is loaded first.
func LoadConfig(paths ...string) (*Config, error) {
	config, err := Load(paths...)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load reads configuration like LoadConfig without validating it. Tools that only need the
// database section use it.
func Load(paths ...string) (*Config, error) {
	if err := loadDotEnv(paths...); err != nil {
		return nil, err
	}

	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("KIDDIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

// Validate checks the settings without which the server cannot run.
func (c *Config) Validate() error {
	c.Auth.JWT.Secret = strings.TrimSpace(c.Auth.JWT.Secret)
	if c.Auth.JWT.Secret == "" {
		return errors.New("config: auth.jwt.secret must be configured")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range", c.Server.Port)
	}
	return nil
}

func loadDotEnv(paths ...string) error {
	candidates := []string{".env"}
	for _, path := range paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		// Existing environment variables win over the file.
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("config: load %s: %w", candidate, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_file", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.frontend_url", "http://localhost:3000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/kiddies.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.slow_query_threshold", "500ms")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.redis.pool_size", 10)
	v.SetDefault("cache.redis.key_prefix", "kiddies:")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "kiddies")
	v.SetDefault("auth.jwt.audience", "kiddies-web")
	v.SetDefault("auth.jwt.access_token_ttl", "168h")
	v.SetDefault("auth.jwt.leeway", "30s")
	v.SetDefault("auth.rate_limit.requests", 20)
	v.SetDefault("auth.rate_limit.window", "1m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("invites.expiry", "168h") // 7 days
	v.SetDefault("invites.token_bytes", 32)

	v.SetDefault("census.timezone", "UTC")
	v.SetDefault("census.dashboard_cache_ttl", "30s")

	v.SetDefault("bootstrap.admin_email", "")

	v.SetDefault("maintenance.cache_purge", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

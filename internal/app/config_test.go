package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/cache"
	"github.com/charlesng35/kiddies/internal/calendar"
	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/database/testutil"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://kiddies.example.org", "https://admin.kiddies.example.org"}, cfg.Server.CORSOrigins)
	require.Equal(t, "https://kiddies.example.org", cfg.Server.FrontendURL)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "kiddies-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 12*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 5, cfg.Auth.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Auth.RateLimit.Window)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.Equal(t, 72*time.Hour, cfg.Invites.Expiry)
	require.Equal(t, 24, cfg.Invites.TokenBytes)
	require.Equal(t, "Africa/Lagos", cfg.Census.Timezone)
	require.Equal(t, "pastor@church.org", cfg.Bootstrap.AdminEmail)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("KIDDIES_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/kiddies.sqlite", cfg.Database.Path)
	require.Equal(t, 500*time.Millisecond, cfg.Database.SlowQueryThreshold)
	require.Equal(t, 10, cfg.Database.MaxOpenConns)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 168*time.Hour, cfg.Auth.JWT.TTL)
	require.Equal(t, 7*24*time.Hour, cfg.Invites.Expiry)
	require.Equal(t, 32, cfg.Invites.TokenBytes)
	require.Equal(t, "UTC", cfg.Census.Timezone)
	require.Empty(t, cfg.Bootstrap.AdminEmail)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	t.Setenv("KIDDIES_SERVER_PORT", "6000")
	t.Setenv("KIDDIES_CENSUS_TIMEZONE", "Europe/London")

	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)
	require.Equal(t, 6000, cfg.Server.Port)
	require.Equal(t, "Europe/London", cfg.Census.Timezone)
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	unsetEnv(t, "KIDDIES_AUTH_JWT_SECRET")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "auth.jwt.secret")
}

func TestLoadSkipsValidation(t *testing.T) {
	unsetEnv(t, "KIDDIES_AUTH_JWT_SECRET")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, cfg.Auth.JWT.Secret)
	require.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	unsetEnv(t, "KIDDIES_AUTH_JWT_SECRET")
	unsetEnv(t, "KIDDIES_BOOTSTRAP_ADMIN_EMAIL")

	dir := t.TempDir()
	content := "KIDDIES_AUTH_JWT_SECRET=dotenv-secret\nKIDDIES_BOOTSTRAP_ADMIN_EMAIL=first@church.org\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, "dotenv-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "first@church.org", cfg.Bootstrap.AdminEmail)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Config{
		Server: ServerConfig{Port: 70000},
		Auth:   AuthConfig{JWT: JWTSettings{Secret: "secret"}},
	}
	require.Error(t, cfg.Validate())
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		JWT: JWTSettings{
			Secret:   "secret",
			Issuer:   "issuer",
			Audience: "web",
			TTL:      30 * time.Minute,
			Leeway:   time.Minute,
		},
		RateLimit: RateLimitSettings{
			Requests: 3,
			Window:   10 * time.Second,
		},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		Audience:       "web",
		AccessTokenTTL: 30 * time.Minute,
		Leeway:         time.Minute,
	}, cfg.JWTServiceConfig())

	requests, window := cfg.RateLimitPolicy()
	require.Equal(t, 3, requests)
	require.Equal(t, 10*time.Second, window)
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	svc, err := auth.NewJWTService(AuthConfig{JWT: JWTSettings{Secret: "s"}}.JWTServiceConfig())
	require.NoError(t, err)
	require.Equal(t, auth.DefaultAccessTokenTTL, svc.TTL())

	requests, window := cfg.RateLimitPolicy()
	require.Equal(t, defaultRateLimitRequests, requests)
	require.Equal(t, defaultRateLimitWindow, window)
}

func TestEmailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "user", settings.Username)
	require.Equal(t, "pass", settings.Password)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.True(t, settings.UseTLS)
	require.Equal(t, 10*time.Second, settings.Timeout)
}

func TestEmailConfigSenderFallback(t *testing.T) {
	login := EmailConfig{SMTP: SMTPConfig{Host: " smtp.example.com ", Username: "office@church.org"}}.SMTPSettings()
	require.Equal(t, "smtp.example.com", login.Host)
	require.Equal(t, "office@church.org", login.From)

	apiKey := EmailConfig{SMTP: SMTPConfig{Username: "apikey"}}.SMTPSettings()
	require.Empty(t, apiKey.From)
}

func TestDatabaseConnectionConfig(t *testing.T) {
	sqlite := DatabaseConfig{Path: " ./data/test.sqlite "}.ConnectionConfig()
	require.Equal(t, database.Config{Driver: "sqlite", Path: "./data/test.sqlite"}, sqlite)

	pg := DatabaseConfig{
		Driver: "PostgreSQL",
		Postgres: DBAuthConfig{
			Host:     "db.example.com",
			Port:     5432,
			Database: "kiddies",
			Username: "app",
			Password: "pw",
		},
	}.ConnectionConfig()
	require.Equal(t, "postgres", pg.Driver)
	require.Equal(t, "db.example.com", pg.Host)
	require.Equal(t, 5432, pg.Port)
	require.Equal(t, "kiddies", pg.Name)
	require.Equal(t, "app", pg.User)
	require.Equal(t, "pw", pg.Password)

	my := DatabaseConfig{Driver: "mysql", MySQL: DBAuthConfig{Host: "mysql", Port: 3306}}.ConnectionConfig()
	require.Equal(t, "mysql", my.Driver)
	require.Equal(t, "mysql", my.Host)

	tuned := DatabaseConfig{
		Driver:             "sqlite3",
		Options:            map[string]string{"_busy_timeout": "100"},
		MaxOpenConns:       4,
		ConnMaxLifetime:    time.Minute,
		SlowQueryThreshold: 200 * time.Millisecond,
	}.ConnectionConfig()
	require.Equal(t, "sqlite", tuned.Driver)
	require.Equal(t, "100", tuned.Options["_busy_timeout"])
	require.Equal(t, 4, tuned.MaxOpenConns)
	require.Equal(t, time.Minute, tuned.ConnMaxLifetime)
	require.Equal(t, 200*time.Millisecond, tuned.SlowQueryThreshold)
}

func TestCensusOptions(t *testing.T) {
	store := cache.NewDatabaseStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))

	opts, err := CensusConfig{DashboardCacheTTL: time.Minute}.CensusOptions(store)
	require.NoError(t, err)
	require.Len(t, opts, 2)

	opts, err = CensusConfig{}.CensusOptions(store)
	require.NoError(t, err)
	require.Len(t, opts, 1)

	_, err = CensusConfig{Timezone: "Mars/Olympus"}.CensusOptions(nil)
	require.Error(t, err)
}

func TestCensusCalendar(t *testing.T) {
	cal, err := CensusConfig{}.Calendar()
	require.NoError(t, err)
	lateEvening := time.Date(2025, 1, 5, 23, 30, 0, 0, time.UTC)
	require.Equal(t, calendar.Day("2025-01-05"), cal.DayOf(lateEvening))

	cal, err = CensusConfig{Timezone: "Africa/Lagos"}.Calendar()
	require.NoError(t, err)
	require.Equal(t, calendar.Day("2025-01-06"), cal.DayOf(lateEvening))

	_, err = CensusConfig{Timezone: "Mars/Olympus"}.Calendar()
	require.Error(t, err)
}

func TestInviteOptions(t *testing.T) {
	require.Len(t, InviteConfig{}.InviteOptions("https://kiddies.example.org"), 1)
	require.Len(t, InviteConfig{Expiry: time.Hour, TokenBytes: 16}.InviteOptions(""), 3)
}

// unsetEnv removes key for the duration of the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

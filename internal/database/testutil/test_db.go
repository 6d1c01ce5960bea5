// Package testutil opens throwaway census databases and inserts fixture accounts for tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/database"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
)

// DefaultPassword is the plain-text password of fixture users created without one.
const DefaultPassword = "Secret123!"

// TestDBOption customises MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	schema   bool
	defaults bool
}

// WithAutoMigrate creates every table before the database is returned.
func WithAutoMigrate() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.schema = true
	}
}

// WithSeedData migrates and also stores the default services and motto.
func WithSeedData() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.schema = true
		cfg.defaults = true
	}
}

// MustOpenTestDB opens a private in-memory SQLite database that is closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	var cfg testDBConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := database.Open(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = database.Close(db)
	})

	switch {
	case cfg.defaults:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case cfg.schema:
		require.NoError(t, database.AutoMigrate(db))
	}
	return db
}

// UserFixture describes an account for MustCreateUser. Blank fields get placeholder values.
type UserFixture struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Role        string
	Inactive    bool
}

// MustCreateUser inserts a user with a bcrypt-hashed password.
func MustCreateUser(t *testing.T, db *gorm.DB, fx UserFixture) *models.User {
	t.Helper()

	password := fx.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := crypto.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:        fx.Email,
		PasswordHash: hash,
		FirstName:    orDefault(fx.FirstName, "Test"),
		LastName:     orDefault(fx.LastName, "User"),
		PhoneNumber:  orDefault(fx.PhoneNumber, "08000000000"),
		Role:         orDefault(fx.Role, models.RoleUser),
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	// is_active defaults to true in the schema, so a false value has to be written explicitly.
	if fx.Inactive {
		require.NoError(t, db.Model(user).Update("is_active", false).Error)
		user.IsActive = false
	}
	return user
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

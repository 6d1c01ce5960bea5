// Package providers authenticates users against stored credentials.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
	"github.com/charlesng35/kiddies/pkg/logger"
)

// ErrInvalidCredentials covers every failed login: unknown email, inactive
// account and wrong password look the same to the caller.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// AuthenticateInput holds the credentials of one login attempt.
type AuthenticateInput struct {
	Email    string
	Password string
}

// LocalProvider checks email and password against the bcrypt hashes in the users table.
type LocalProvider struct {
	db *gorm.DB
	// decoy is compared when no account matches so both paths cost one bcrypt run.
	decoy string
	log   *zap.Logger
}

// NewLocalProvider builds a provider over db.
func NewLocalProvider(db *gorm.DB) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}
	decoy, err := crypto.HashPassword("kiddies-unknown-account")
	if err != nil {
		return nil, fmt.Errorf("local provider: prepare decoy hash: %w", err)
	}
	return &LocalProvider{db: db, decoy: decoy, log: logger.WithModule("auth")}, nil
}

// Authenticate returns the active user owning the credentials. Hashes made at
// an outdated bcrypt cost are replaced after a successful check.
func (p *LocalProvider) Authenticate(ctx context.Context, input AuthenticateInput) (*models.User, error) {
	email := models.NormaliseEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := p.activeUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		crypto.VerifyPassword(p.decoy, input.Password)
		return nil, ErrInvalidCredentials
	}
	if !crypto.VerifyPassword(user.PasswordHash, input.Password) {
		return nil, ErrInvalidCredentials
	}

	if crypto.NeedsRehash(user.PasswordHash) {
		p.rehash(ctx, user, input.Password)
	}
	return user, nil
}

func (p *LocalProvider) activeUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := p.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", email, true).
		Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}
	return &user, nil
}

// rehash never fails the login; a failed upgrade is retried on the next one.
func (p *LocalProvider) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		p.log.Warn("rehash password", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	err = p.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND password = ?", user.ID, user.PasswordHash).
		Update("password", hash).Error
	if err != nil {
		p.log.Warn("rehash password", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

// HashPassword produces the stored form of a new password.
func HashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("local provider: password is required")
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("local provider: %w", err)
	}
	return hash, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
)

// UpdateProfileInput enumerates the profile attributes a user may change. Blank values are
// ignored so absent fields keep their stored value.
type UpdateProfileInput struct {
	FirstName   string
	LastName    string
	PhoneNumber string
	Image       string
}

// SeedAdminInput describes the administrator provisioned by the seed command.
type SeedAdminInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// UserService exposes profile reads and updates plus administrative user queries.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internalError(fmt.Errorf("user service: get user: %w", err))
	}
	return &user, nil
}

// Profile returns the public view of the user.
func (s *UserService) Profile(ctx context.Context, id string) (UserView, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return UserView{}, err
	}
	return NewUserView(user), nil
}

// UpdateProfile overwrites only the non-empty fields of input. Email and role are never touched.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (UserView, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return UserView{}, err
	}

	updates := map[string]any{}
	if v := strings.TrimSpace(input.FirstName); v != "" {
		updates["first_name"] = v
	}
	if v := strings.TrimSpace(input.LastName); v != "" {
		updates["last_name"] = v
	}
	if v := strings.TrimSpace(input.PhoneNumber); v != "" {
		updates["phone_number"] = v
	}
	if v := strings.TrimSpace(input.Image); v != "" {
		updates["image"] = v
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return UserView{}, internalError(fmt.Errorf("user service: update profile: %w", err))
		}
	}

	return s.Profile(ctx, id)
}

// ListActive returns active users, newest first.
func (s *UserService) ListActive(ctx context.Context) ([]UserView, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&users).Error; err != nil {
		return nil, internalError(fmt.Errorf("user service: list users: %w", err))
	}

	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, NewUserView(&users[i]))
	}
	return views, nil
}

// Count returns the number of stored users.
func (s *UserService) Count(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, internalError(fmt.Errorf("user service: count users: %w", err))
	}
	return count, nil
}

// AdminExists returns an active administrator when one exists, or nil.
func (s *UserService) AdminExists(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Order("created_at ASC").
		Take(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, internalError(fmt.Errorf("user service: lookup admin: %w", err))
	}
}

// EnsureAdmin provisions the seed administrator. An existing account with the email is promoted
// and reactivated without changing its password. The bootstrap marker is claimed when free.
func (s *UserService) EnsureAdmin(ctx context.Context, input SeedAdminInput) (*models.User, bool, error) {
	ctx = ensureContext(ctx)

	email := models.NormaliseEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return nil, false, err
	}

	var (
		user    models.User
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).Take(&user).Error
		switch {
		case err == nil:
			if err := tx.Model(&user).Updates(map[string]any{
				"role":      models.RoleAdmin,
				"is_active": true,
			}).Error; err != nil {
				return fmt.Errorf("promote user: %w", err)
			}
			user.Role = models.RoleAdmin
			user.IsActive = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := crypto.HashPassword(input.Password)
			if err != nil {
				return validationError("Password is required")
			}
			id, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("admin id: %w", err)
			}
			user = models.User{
				BaseModel:    models.BaseModel{ID: id.String()},
				Email:        email,
				PasswordHash: hash,
				FirstName:    firstNonEmpty(input.FirstName, "System"),
				LastName:     firstNonEmpty(input.LastName, "Administrator"),
				PhoneNumber:  strings.TrimSpace(input.PhoneNumber),
				Role:         models.RoleAdmin,
				IsActive:     true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			created = true
		default:
			return fmt.Errorf("lookup admin: %w", err)
		}

		if _, err := insertBootstrapMarker(tx, user.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, false, internalError(err)
	}

	return &user, created, nil
}

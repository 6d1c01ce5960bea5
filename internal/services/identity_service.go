package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	iauth "github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/auth/providers"
	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/metrics"
)

// UserView is the public representation of a user. It never carries the password hash.
type UserView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Image       string `json:"image,omitempty"`
	Role        string `json:"role"`
}

// NewUserView redacts a stored user for API consumers.
func NewUserView(user *models.User) UserView {
	if user == nil {
		return UserView{}
	}
	return UserView{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		PhoneNumber: user.PhoneNumber,
		Image:       user.Image,
		Role:        user.Role,
	}
}

// Session is returned by a successful login or registration.
type Session struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

// RegisterInput carries the onboarding form submitted with an invite token.
type RegisterInput struct {
	Token       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Image       string
}

// IdentityService orchestrates login and invite based registration.
type IdentityService struct {
	credentials *providers.LocalProvider
	tokens      *iauth.JWTService
	invites     *InviteService
	log         *zap.Logger
}

// NewIdentityService wires the credential store, token service and invite manager.
func NewIdentityService(credentials *providers.LocalProvider, tokens *iauth.JWTService, invites *InviteService) (*IdentityService, error) {
	switch {
	case credentials == nil:
		return nil, errors.New("identity service: credential provider is required")
	case tokens == nil:
		return nil, errors.New("identity service: jwt service is required")
	case invites == nil:
		return nil, errors.New("identity service: invite service is required")
	}

	return &IdentityService{
		credentials: credentials,
		tokens:      tokens,
		invites:     invites,
		log:         logger.WithModule("identity"),
	}, nil
}

// Login verifies credentials and issues a session token. Empty input is ErrMissingFields;
// every other failure is ErrInvalidCredentials apart from unexpected storage errors.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingFields.WithMessage("Email and password are required")
	}

	user, err := s.credentials.Authenticate(ctx, providers.AuthenticateInput{
		Email:    email,
		Password: password,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		if errors.Is(err, providers.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		s.log.Error("login lookup failed", zap.Error(err))
		return nil, internalError(err)
	}

	session, err := s.issue(user)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "failure").Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("login", "success").Inc()
	return session, nil
}

// Register consumes an invite token and returns a session for the new account.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.Token) == "" ||
		input.Password == "" ||
		strings.TrimSpace(input.FirstName) == "" ||
		strings.TrimSpace(input.LastName) == "" ||
		strings.TrimSpace(input.PhoneNumber) == "" {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		return nil, ErrMissingFields
	}

	hash, err := providers.HashPassword(input.Password)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		if errors.Is(err, crypto.ErrPasswordTooLong) {
			return nil, validationError("Password must be at most 72 bytes")
		}
		return nil, ErrMissingFields
	}

	user, err := s.invites.ConsumeInvite(ctx, input.Token, Registration{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		PhoneNumber:  input.PhoneNumber,
		Image:        input.Image,
		PasswordHash: hash,
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		return nil, err
	}

	session, err := s.issue(user)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("register", "failure").Inc()
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("register", "success").Inc()
	return session, nil
}

func (s *IdentityService) issue(user *models.User) (*Session, error) {
	token, err := s.tokens.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		s.log.Error("issue access token", zap.String("user_id", user.ID), zap.Error(err))
		return nil, internalError(err)
	}
	return &Session{Token: token, User: NewUserView(user)}, nil
}

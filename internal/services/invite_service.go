package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/kiddies/internal/models"
	"github.com/charlesng35/kiddies/pkg/crypto"
	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/mail"
	"github.com/charlesng35/kiddies/pkg/metrics"
)

const (
	defaultInviteExpiry     = 7 * 24 * time.Hour
	defaultInviteTokenBytes = 32
	onboardingPath          = "/onboarding"
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the frontend URL used to create invite hyperlinks.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(url), "/")
	}
}

// WithInviteExpiry overrides the invite token lifetime.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInviteTokenSize adjusts the random token length in bytes.
func WithInviteTokenSize(size int) InviteOption {
	return func(s *InviteService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InviteService manages issuance, verification and consumption of invite tokens.
type InviteService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	baseURL     string
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
	log         *zap.Logger
}

// IssuedInvite is the outcome of an invite request.
type IssuedInvite struct {
	Invite *models.Invite
	Link   string
	// Reused is true when a live invite for the email already existed.
	Reused bool
}

// Registration carries the profile of the account created when an invite is consumed.
type Registration struct {
	FirstName    string
	LastName     string
	PhoneNumber  string
	Image        string
	PasswordHash string
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, mailer mail.Mailer, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}

	service := &InviteService{
		db:          db,
		mailer:      mailer,
		expiry:      defaultInviteExpiry,
		tokenLength: defaultInviteTokenBytes,
		now:         time.Now,
		log:         logger.WithModule("invites"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateInvite issues an invite for email, reusing the live invite when one exists, and
// emails the link. When delivery fails the saved invite is returned with ErrEmailDeliveryFailed.
func (s *InviteService) CreateInvite(ctx context.Context, email, invitedBy string) (*IssuedInvite, error) {
	ctx = ensureContext(ctx)

	email = models.NormaliseEmail(email)
	if email == "" {
		return nil, validationError("Email is required")
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	registered, err := s.emailRegistered(s.db.WithContext(ctx), email)
	if err != nil {
		return nil, internalError(err)
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	issued, err := s.liveOrNewInvite(ctx, email, invitedBy)
	if err != nil {
		return nil, internalError(err)
	}

	if err := s.deliver(ctx, issued); err != nil {
		metrics.InvitesIssued.WithLabelValues("email_failed").Inc()
		return issued, ErrEmailDeliveryFailed.WithInternal(err)
	}

	outcome := "created"
	if issued.Reused {
		outcome = "reused"
	}
	metrics.InvitesIssued.WithLabelValues(outcome).Inc()

	return issued, nil
}

// EnsureBootstrapInvite issues an invite for the configured administrator address while no
// users exist. It returns nil when the installation already has users.
func (s *InviteService) EnsureBootstrapInvite(ctx context.Context, email string) (*IssuedInvite, error) {
	ctx = ensureContext(ctx)

	email = models.NormaliseEmail(email)
	if email == "" {
		return nil, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, internalError(fmt.Errorf("invite service: count users: %w", err))
	}
	if count > 0 {
		return nil, nil
	}

	return s.CreateInvite(ctx, email, "")
}

// VerifyInvite checks that token belongs to an unused, unexpired invite. It never mutates state.
func (s *InviteService) VerifyInvite(ctx context.Context, token string) (*models.Invite, error) {
	ctx = ensureContext(ctx)
	return s.validInvite(s.db.WithContext(ctx), token)
}

// ConsumeInvite creates the account for the invite's email and marks the invite used in a
// single transaction. The very first account becomes admin; later ones are users.
func (s *InviteService) ConsumeInvite(ctx context.Context, token string, reg Registration) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invite, err := s.validInvite(tx, token)
		if err != nil {
			return err
		}

		registered, err := s.emailRegistered(tx, invite.Email)
		if err != nil {
			return err
		}
		if registered {
			return ErrAlreadyRegistered
		}

		res := tx.Model(&models.Invite{}).
			Where("id = ? AND is_used = ?", invite.ID, false).
			Update("is_used", true)
		if res.Error != nil {
			return fmt.Errorf("invite service: mark used: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInviteInvalid
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("invite service: user id: %w", err)
		}
		candidate := &models.User{
			BaseModel:    models.BaseModel{ID: id.String()},
			Email:        invite.Email,
			PasswordHash: reg.PasswordHash,
			FirstName:    strings.TrimSpace(reg.FirstName),
			LastName:     strings.TrimSpace(reg.LastName),
			PhoneNumber:  strings.TrimSpace(reg.PhoneNumber),
			Image:        strings.TrimSpace(reg.Image),
			Role:         models.RoleUser,
			IsActive:     true,
		}

		admin, err := claimBootstrap(tx, candidate.ID)
		if err != nil {
			return err
		}
		if admin {
			candidate.Role = models.RoleAdmin
		}

		if err := tx.Create(candidate).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrAlreadyRegistered
			}
			return fmt.Errorf("invite service: create user: %w", err)
		}

		user = candidate
		return nil
	})
	if err != nil {
		return nil, internalError(err)
	}

	s.log.Info("invite consumed",
		zap.String("user_id", user.ID),
		zap.String("role", user.Role),
		zap.String("token", crypto.Fingerprint(token)),
	)
	return user, nil
}

// InviteLink builds the onboarding URL for token.
func (s *InviteService) InviteLink(token string) string {
	query := url.Values{"token": []string{token}}.Encode()
	return s.baseURL + onboardingPath + "?" + query
}

// claimBootstrap reports whether the account being created wins the first-admin slot. The
// slot is only available while no users exist, and the marker row allows a single winner.
func claimBootstrap(tx *gorm.DB, userID string) (bool, error) {
	var count int64
	if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	return insertBootstrapMarker(tx, userID)
}

func insertBootstrapMarker(tx *gorm.DB, userID string) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.BootstrapMarker{
		Key:    models.BootstrapAdminKey,
		UserID: userID,
	})
	if res.Error != nil {
		return false, fmt.Errorf("claim bootstrap marker: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *InviteService) validInvite(db *gorm.DB, token string) (*models.Invite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validationError("Token is required")
	}

	var invite models.Invite
	err := db.Where("token = ?", token).Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: find invite: %w", err)
	}

	switch invite.Status(s.now()) {
	case models.InviteStatusUsed:
		return nil, ErrInviteInvalid
	case models.InviteStatusExpired:
		return nil, ErrInviteExpired
	}
	return &invite, nil
}

func (s *InviteService) emailRegistered(db *gorm.DB, email string) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("invite service: lookup user: %w", err)
	}
	return count > 0, nil
}

func (s *InviteService) liveOrNewInvite(ctx context.Context, email, invitedBy string) (*IssuedInvite, error) {
	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	var live models.Invite
	err := db.Where("email = ? AND is_used = ? AND expires_at > ?", email, false, now).
		Order("created_at DESC").
		Take(&live).Error
	if err == nil {
		return &IssuedInvite{Invite: &live, Link: s.InviteLink(live.Token), Reused: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invite service: find live invite: %w", err)
	}

	token, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invite service: generate token: %w", err)
	}

	invite := &models.Invite{
		Email:     email,
		Token:     token,
		ExpiresAt: now.Add(s.expiry),
	}
	if invitedBy = strings.TrimSpace(invitedBy); invitedBy != "" {
		invite.InvitedBy = &invitedBy
	}

	if err := db.Create(invite).Error; err != nil {
		return nil, fmt.Errorf("invite service: create invite: %w", err)
	}

	return &IssuedInvite{Invite: invite, Link: s.InviteLink(token)}, nil
}

func (s *InviteService) deliver(ctx context.Context, issued *IssuedInvite) error {
	if s.mailer == nil {
		return mail.ErrSMTPDisabled
	}

	message, err := inviteMessage(issued.Invite.Email, issued.Link, s.expiry)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, message); err != nil {
		s.log.Warn("invite email not delivered",
			zap.String("invite_id", issued.Invite.ID),
			zap.String("email", issued.Invite.Email),
			zap.Error(err),
		)
		return err
	}
	return nil
}

package security

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/kiddies/internal/app"
	iauth "github.com/charlesng35/kiddies/internal/auth"
	"github.com/charlesng35/kiddies/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minSecretBytes     = 32
	strongSecretBytes  = 48
	maxRecommendedTTL  = 30 * 24 * time.Hour
	checkAdminPresent  = "admin_present"
	checkJWTSecret     = "jwt_secret_strength"
	checkTokenLifetime = "access_token_ttl"
	checkInviteMail    = "invite_delivery"
	checkCORS          = "cors_origins"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
}

// Result aggregates all checks with a per-status count.
type Result struct {
	CheckedAt time.Time      `json:"checkedAt"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Find returns the check with id, or nil.
func (r Result) Find(id string) *Check {
	for i := range r.Checks {
		if r.Checks[i].ID == id {
			return &r.Checks[i]
		}
	}
	return nil
}

// AuditService reviews the deployment configuration at startup. Missing inputs degrade the
// affected checks to warnings.
type AuditService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

func NewAuditService(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{db: db, jwt: jwt, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock stamped on results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdmin(ctx),
		s.checkJWTSecret(),
		s.checkTokenLifetime(),
		s.checkInviteDelivery(),
		s.checkCORS(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{CheckedAt: s.now().UTC(), Checks: checks, Summary: summary}
}

func (s *AuditService) checkAdmin(ctx context.Context) Check {
	if s.db == nil {
		return Check{
			ID:          checkAdminPresent,
			Status:      StatusWarn,
			Message:     "Database unavailable; unable to confirm an administrator exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Count(&count).Error; err != nil {
		return Check{
			ID:      checkAdminPresent,
			Status:  StatusWarn,
			Message: fmt.Sprintf("Could not count administrators: %v", err),
		}
	}
	if count > 0 {
		return Check{ID: checkAdminPresent, Status: StatusPass, Message: fmt.Sprintf("%d active administrator(s).", count)}
	}

	if s.cfg != nil && s.cfg.Bootstrap.AdminEmail != "" {
		return Check{
			ID:      checkAdminPresent,
			Status:  StatusWarn,
			Message: fmt.Sprintf("No administrator yet; a bootstrap invite targets %s.", s.cfg.Bootstrap.AdminEmail),
		}
	}
	return Check{
		ID:          checkAdminPresent,
		Status:      StatusFail,
		Message:     "No active administrator and no bootstrap address configured.",
		Remediation: "Run the seed command or set KIDDIES_BOOTSTRAP_ADMIN_EMAIL.",
	}
}

func (s *AuditService) checkJWTSecret() Check {
	if s.jwt == nil {
		return Check{
			ID:      checkJWTSecret,
			Status:  StatusWarn,
			Message: "JWT service not initialised; unable to assess the signing secret.",
		}
	}

	length := s.jwt.SecretLength()
	switch {
	case length < minSecretBytes:
		return Check{
			ID:          checkJWTSecret,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated KIDDIES_AUTH_JWT_SECRET of at least 32 bytes.",
		}
	case length < strongSecretBytes:
		return Check{
			ID:          checkJWTSecret,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider 48 or more.", length),
			Remediation: "Increase the length of KIDDIES_AUTH_JWT_SECRET.",
		}
	default:
		return Check{ID: checkJWTSecret, Status: StatusPass, Message: fmt.Sprintf("JWT signing secret is %d bytes.", length)}
	}
}

func (s *AuditService) checkTokenLifetime() Check {
	if s.jwt == nil {
		return Check{ID: checkTokenLifetime, Status: StatusWarn, Message: "JWT service not initialised."}
	}
	ttl := s.jwt.TTL()
	if ttl > maxRecommendedTTL {
		return Check{
			ID:          checkTokenLifetime,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access tokens live %s, above the recommended %s.", ttl, maxRecommendedTTL),
			Remediation: "Lower auth.jwt.access_token_ttl.",
		}
	}
	return Check{ID: checkTokenLifetime, Status: StatusPass, Message: fmt.Sprintf("Access tokens live %s.", ttl)}
}

func (s *AuditService) checkInviteDelivery() Check {
	if s.cfg == nil || !s.cfg.Email.SMTP.Enabled {
		return Check{
			ID:          checkInviteMail,
			Status:      StatusWarn,
			Message:     "SMTP is disabled; invite links must be shared by hand.",
			Remediation: "Configure email.smtp to email invitations.",
		}
	}
	return Check{ID: checkInviteMail, Status: StatusPass, Message: fmt.Sprintf("Invites are sent through %s.", s.cfg.Email.SMTP.Host)}
}

func (s *AuditService) checkCORS() Check {
	if s.cfg == nil || len(s.cfg.Server.CORSOrigins) == 0 {
		return Check{
			ID:          checkCORS,
			Status:      StatusWarn,
			Message:     "CORS accepts every origin.",
			Remediation: "List the frontend origin in server.cors_origins.",
		}
	}
	return Check{ID: checkCORS, Status: StatusPass, Message: fmt.Sprintf("CORS limited to %d origin(s).", len(s.cfg.Server.CORSOrigins))}
}

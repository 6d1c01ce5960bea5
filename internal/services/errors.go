package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/kiddies/pkg/errors"
)

var (
	// ErrInvalidCredentials is the single failure reported for any unsuccessful login.
	ErrInvalidCredentials = apperrors.ErrInvalidCredentials
	// ErrMissingFields reports that a required registration field was left empty.
	ErrMissingFields = apperrors.ErrMissingFields
	// ErrInviteInvalid indicates no unused invite matches the token.
	ErrInviteInvalid = apperrors.NewKind(apperrors.KindConflict, "INVITE_INVALID", "Invalid invitation token")
	// ErrInviteExpired indicates the invite exists but is past its expiry.
	ErrInviteExpired = apperrors.NewKind(apperrors.KindConflict, "INVITE_EXPIRED", "Invitation has expired")
	// ErrAlreadyRegistered indicates an account already exists for the email.
	ErrAlreadyRegistered = apperrors.NewKind(apperrors.KindConflict, "ALREADY_REGISTERED", "User already exists with this email")
	// ErrEmailDeliveryFailed reports that an invite was saved but its email could not be sent.
	ErrEmailDeliveryFailed = apperrors.NewKind(apperrors.KindDependency, "EMAIL_DELIVERY_FAILED", "Failed to send invitation email")
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.NewKind(apperrors.KindNotFound, "USER_NOT_FOUND", "User not found")
	// ErrSettingNotFound indicates no setting is stored under the key.
	ErrSettingNotFound = apperrors.NewKind(apperrors.KindNotFound, "SETTING_NOT_FOUND", "Setting not found")
	// ErrForbidden is returned when a role check fails.
	ErrForbidden = apperrors.ErrForbidden
)

// validationError builds a caller-correctable error with a specific message.
func validationError(message string) *apperrors.AppError {
	return apperrors.NewKind(apperrors.KindValidation, "VALIDATION_ERROR", message)
}

// internalError hides storage details from callers while keeping them for logs.
func internalError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.ErrInternalServer.WithInternal(err)
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate")
}

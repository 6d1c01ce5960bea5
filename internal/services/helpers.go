package services

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/kiddies/pkg/validator"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func defaultClock(clock func() time.Time) func() time.Time {
	if clock != nil {
		return clock
	}
	return time.Now
}

// normaliseStrings trims every value and drops blanks while keeping order.
func normaliseStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func validateEmail(email string) error {
	if err := validator.ValidateVar(email, "required,email"); err != nil {
		return validationError("A valid email address is required")
	}
	return nil
}

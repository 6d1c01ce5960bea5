package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/charlesng35/kiddies/internal/calendar"
)

var rules = map[string]validator.Func{
	"notblank":    notBlank,
	"calendarday": calendarDay,
}

// notBlank rejects strings that are empty once surrounding whitespace is removed.
func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(field.String()) != ""
}

// calendarDay accepts an exact YYYY-MM-DD day or an RFC 3339 timestamp.
func calendarDay(fl validator.FieldLevel) bool {
	field := fl.Field()
	return field.Kind() == reflect.String && calendar.ValidDay(field.String())
}

// Message renders the failure for API clients.
func (fe FieldError) Message() string {
	field := fe.Field
	if field == "" {
		field = "field"
	}

	switch fe.Tag {
	case "required", "notblank":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "calendarday":
		return field + " must be a date in YYYY-MM-DD format"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param)
	case "":
		return field + " is invalid"
	}
	if fe.Param != "" {
		return fmt.Sprintf("%s failed validation: %s=%s", field, fe.Tag, fe.Param)
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag)
}

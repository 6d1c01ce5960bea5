// Package validator wraps go-playground/validator with the rules and error
// messages used by the API.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var instance = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	return v
})

// FieldError is one failed rule. Field is the JSON path of the value, such as
// "ageBrackets[0].count".
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// ValidationErrors lists every failed rule of a struct.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Message()
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct runs the validate tags of s. Rule failures come back as ValidationErrors.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) {
		return err
	}

	out := make(ValidationErrors, len(failures))
	for i, fe := range failures {
		out[i] = FieldError{Field: fieldPath(fe.Namespace()), Tag: fe.Tag(), Param: fe.Param()}
	}
	return out
}

// ValidateVar checks a single value against a tag expression such as "required,email".
func ValidateVar(field any, tag string) error {
	return instance().Var(field, tag)
}

// RegisterValidation adds a custom rule.
func RegisterValidation(tag string, fn validator.Func) error {
	return instance().RegisterValidation(tag, fn)
}

func jsonName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}
	return name
}

// fieldPath drops the top level struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

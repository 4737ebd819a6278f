// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance.
// Domain-specific validation rules can be registered using RegisterValidation.
func New() *Validator {
	return &Validator{
		v: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// FieldErrors flattens validation errors into "field: rule" messages suitable for
// an error response's details. Non-validation errors yield a single entry.
func FieldErrors(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = fmt.Sprintf("%s=%s", rule, fe.Param())
		}
		out = append(out, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), rule))
	}
	return out
}

// Package validation provides struct-tag validation for dataset items and
// command arguments. Field names in messages use the JSON tag names so that
// callers see the same names they sent.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "bytepad-backend/internal/errors"
)

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Validator wraps a configured validator instance.
type Validator struct {
	validate *validator.Validate
}

var (
	instance *Validator
	once     sync.Once
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// GetValidator returns the shared validator instance.
func GetValidator() *Validator {
	once.Do(func() {
		instance = NewValidator()
	})
	return instance
}

// NewValidator creates a new validator with the custom rules registered.
func NewValidator() *Validator {
	v := &Validator{validate: validator.New()}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation("notblank", notBlank)
	_ = v.validate.RegisterValidation("hexcolor", hexColor)
	_ = v.validate.RegisterValidation("isodate", isoDate)

	return v
}

// Validate checks a struct and returns a VALIDATION UnifiedError listing
// every failed field.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation(apperrors.CodeInvalidArguments, "Invalid input").
			WithCause(err).
			WithDetails(err.Error()).
			Build()
	}

	fields := make([]FieldError, 0, len(validationErrors))
	parts := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		fe := FieldError{
			Field:   e.Field(),
			Message: message(e.Tag(), e.Param()),
			Code:    strings.ToUpper(e.Tag()),
		}
		fields = append(fields, fe)
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}

	return apperrors.Validation(apperrors.CodeInvalidArguments, "Invalid input").
		WithDetails(strings.Join(parts, "; ")).
		WithMetadata("fields", fields).
		Build()
}

// Validate validates with the shared instance.
func Validate(i interface{}) error {
	return GetValidator().Validate(i)
}

func message(tag, param string) string {
	switch tag {
	case "required", "notblank":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s", param)
	case "max":
		return fmt.Sprintf("Must be at most %s", param)
	case "url":
		return "Must be a valid URL"
	case "hexcolor":
		return "Must be a valid hex color (e.g., #FF5733)"
	case "isodate":
		return "Must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", param)
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", param)
	default:
		return fmt.Sprintf("Failed %s validation", tag)
	}
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func hexColor(fl validator.FieldLevel) bool {
	color := fl.Field().String()
	if color == "" {
		return true
	}
	return hexColorPattern.MatchString(color)
}

func isoDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/benvon/soonish/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	for tag, fn := range map[string]validator.Func{
		"time_mode":       validateTimeMode,
		"period_preset":   validatePeriodPreset,
		"deadline_preset": validateDeadlinePreset,
		"token_scope":     validateTokenScope,
		"notblank":        validateNotBlank,
	} {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

// Struct validates v and reports the first failing field as a
// models.ValidationError
func Struct(v any) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("failed to validate request: %w", err)
	}
	fe := fieldErrs[0]
	return models.NewValidationError(jsonName(fe), describe(fe))
}

func validateTimeMode(fl validator.FieldLevel) bool {
	_, ok := models.ParseTimeModeKind(fl.Field().String())
	return ok
}

func validatePeriodPreset(fl validator.FieldLevel) bool {
	return models.PeriodPreset(fl.Field().String()).Valid()
}

func validateDeadlinePreset(fl validator.FieldLevel) bool {
	return models.DeadlinePreset(fl.Field().String()).Valid()
}

func validateTokenScope(fl validator.FieldLevel) bool {
	return models.TokenScope(fl.Field().String()).Valid()
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "must not be empty"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "time_mode":
		return "must be one of period, deadline, anytime"
	case "period_preset":
		return "must be one of " + joinPresets(models.PeriodPresets())
	case "deadline_preset":
		return "must be one of " + joinPresets(models.DeadlinePresets())
	case "token_scope":
		return "must be full or read"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func joinPresets[P ~string](presets []P) string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

package models

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every ValidationError via errors.Is
var ErrValidation = errors.New("validation failed")

// ValidationError describes a rejected field value on a plan or suggestion
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is the ErrValidation sentinel
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError returns a ValidationError for field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

var (
	// ErrEmptyTitle is returned when a plan title is empty or whitespace only
	ErrEmptyTitle = &ValidationError{Field: "title", Reason: "must not be empty"}
	// ErrMissingCustomDate is returned when a custom deadline has no date
	ErrMissingCustomDate = &ValidationError{Field: "custom_deadline_date", Reason: "required when deadline preset is custom"}
	// ErrInvalidTimeMode is returned for an unknown or malformed time mode
	ErrInvalidTimeMode = &ValidationError{Field: "time_mode", Reason: "must be one of period, deadline, anytime"}
)

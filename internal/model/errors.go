package model

import "fmt"

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError bundles the field errors of a rejected request into a
// single error value. Validation always happens before any write, so a
// ValidationError guarantees no partial state was left behind.
type ValidationError struct {
	Errors []FieldError
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	msg := fmt.Sprintf("%s: %s", v.Errors[0].Field, v.Errors[0].Message)
	if len(v.Errors) > 1 {
		msg = fmt.Sprintf("%s (and %d more errors)", msg, len(v.Errors)-1)
	}
	return msg
}

// NewValidationError wraps field errors, returning nil when there are none
func NewValidationError(errors []FieldError) error {
	if len(errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: errors}
}

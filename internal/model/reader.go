package model

import (
	"strings"
	"time"
)

// Reader represents a registered borrower. The count of currently-open
// loans is derived by query at loan-creation time, never stored.
type Reader struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	CardNumber string `json:"card_number"`
	LoanLimit  int    `json:"loan_limit"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// DefaultLoanLimit is the number of simultaneously open loans a new
// reader is allowed.
const DefaultLoanLimit = 5

const MaxReaderNameLength = 200

// RegisterReaderRequest represents a request to register a new reader
type RegisterReaderRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate validates a RegisterReaderRequest
func (r *RegisterReaderRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Name == "" {
		errors = append(errors, FieldError{Field: "name", Message: "name is required"})
	} else if len(r.Name) > MaxReaderNameLength {
		errors = append(errors, FieldError{Field: "name", Message: "name too long"})
	}

	if r.Email == "" {
		errors = append(errors, FieldError{Field: "email", Message: "email is required"})
	} else if !strings.Contains(r.Email, "@") {
		errors = append(errors, FieldError{Field: "email", Message: "invalid email format"})
	}

	return errors
}

package model

import "time"

// Loan represents one Copy borrowed by one Reader. A loan is open while
// ReturnDate is nil; closing it sets ReturnDate and computes the late fee.
type Loan struct {
	ID       string `json:"id"`
	CopyID   string `json:"copy_id"`
	ReaderID string `json:"reader_id"`

	LoanDate   time.Time  `json:"loan_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`

	// FeeCents is the accrued late fee in cents. Integer cents keep the
	// day-count arithmetic exact.
	FeeCents int64   `json:"fee_cents"`
	Notes    *string `json:"notes,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// IsOpen reports whether the loan has not been returned yet.
func (l *Loan) IsOpen() bool {
	return l.ReturnDate == nil
}

// Lending policy defaults. Overridable through configuration.
const (
	DefaultLoanPeriodDays    = 14
	DefaultDailyLateFeeCents = 50
)

// CheckoutRequest represents a request to lend a copy to a reader.
// LoanDate defaults to today; DueDate defaults to LoanDate plus the
// configured loan period.
type CheckoutRequest struct {
	CopyID   string     `json:"copy_id"`
	ReaderID string     `json:"reader_id"`
	LoanDate *time.Time `json:"loan_date,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

// Validate validates a CheckoutRequest
func (r *CheckoutRequest) Validate() []FieldError {
	var errors []FieldError

	if r.CopyID == "" {
		errors = append(errors, FieldError{Field: "copy_id", Message: "copy_id is required"})
	}
	if r.ReaderID == "" {
		errors = append(errors, FieldError{Field: "reader_id", Message: "reader_id is required"})
	}
	if r.LoanDate != nil && r.DueDate != nil && r.DueDate.Before(*r.LoanDate) {
		errors = append(errors, FieldError{Field: "due_date", Message: "due_date must not precede loan_date"})
	}

	return errors
}

// DueSoonLoan is the (reader, title, due date) tuple handed to the
// notification dispatcher. The core only decides who to notify.
type DueSoonLoan struct {
	LoanID      string    `json:"loan_id"`
	ReaderID    string    `json:"reader_id"`
	ReaderName  string    `json:"reader_name"`
	ReaderEmail string    `json:"reader_email"`
	TitleID     string    `json:"title_id"`
	TitleName   string    `json:"title_name"`
	DueDate     time.Time `json:"due_date"`
}

// OverdueLoan is a report row for an open loan past its due date. The
// projected fee is computed as of the report date, not persisted.
type OverdueLoan struct {
	LoanID            string    `json:"loan_id"`
	ReaderID          string    `json:"reader_id"`
	ReaderName        string    `json:"reader_name"`
	TitleID           string    `json:"title_id"`
	TitleName         string    `json:"title_name"`
	DueDate           time.Time `json:"due_date"`
	DaysLate          int       `json:"days_late"`
	ProjectedFeeCents int64     `json:"projected_fee_cents"`
}

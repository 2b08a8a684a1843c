package model

import "time"

// Copy represents a single physical copy of a Title.
type Copy struct {
	ID              string `json:"id"`
	TitleID         string `json:"title_id"`
	InventoryNumber string `json:"inventory_number"`

	// Status is written only by the lending and reservation services;
	// in_repair and lost are entered through catalog administration.
	Status string `json:"status"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// Copy status constants
const (
	CopyStatusAvailable      = "available"
	CopyStatusOnLoan         = "on_loan"
	CopyStatusAwaitingPickup = "awaiting_pickup"
	CopyStatusInRepair       = "in_repair"
	CopyStatusLost           = "lost"
)

// ValidCopyStatus reports whether s is a known copy status.
func ValidCopyStatus(s string) bool {
	switch s {
	case CopyStatusAvailable, CopyStatusOnLoan, CopyStatusAwaitingPickup,
		CopyStatusInRepair, CopyStatusLost:
		return true
	}
	return false
}

// AddCopyRequest represents a request to register a physical copy
type AddCopyRequest struct {
	TitleID         string `json:"title_id"`
	InventoryNumber string `json:"inventory_number"`
}

// Validate validates an AddCopyRequest
func (r *AddCopyRequest) Validate() []FieldError {
	var errors []FieldError

	if r.TitleID == "" {
		errors = append(errors, FieldError{Field: "title_id", Message: "title_id is required"})
	}
	if r.InventoryNumber == "" {
		errors = append(errors, FieldError{Field: "inventory_number", Message: "inventory_number is required"})
	}

	return errors
}

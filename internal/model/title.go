package model

import (
	"regexp"
	"time"
)

// Title represents a catalog entry, not a physical copy.
type Title struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"`
	Publisher     *string `json:"publisher,omitempty"`
	Year          *int    `json:"year,omitempty"`
	Category      *string `json:"category,omitempty"`
	Pages         *int    `json:"pages,omitempty"`
	ShelfLocation *string `json:"shelf_location,omitempty"`

	CreatedOn time.Time `json:"created_on"`
	UpdatedOn time.Time `json:"updated_on"`
}

// Constraints
const (
	MaxTitleLength    = 255
	MaxAuthorLength   = 255
	MaxCategoryLength = 100
)

// isbn13Pattern accepts a 13-digit ISBN, optionally with hyphens or
// spaces and an "ISBN-13:" style prefix. The number itself is captured
// so the digit count can be checked without the prefix.
var isbn13Pattern = regexp.MustCompile(`^(?:ISBN(?:-13)?:? )?(97[89][- ]?[0-9]{1,5}[- ]?[0-9]+[- ]?[0-9]+[- ]?[0-9])$`)

// isbnSeparators matches the hyphens and spaces allowed between digit groups.
var isbnSeparators = regexp.MustCompile(`[- ]`)

// ValidISBN13 reports whether s looks like a 13-digit ISBN.
func ValidISBN13(s string) bool {
	m := isbn13Pattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	return len(isbnSeparators.ReplaceAllString(m[1], "")) == 13
}

// CreateTitleRequest represents a request to add a title to the catalog
type CreateTitleRequest struct {
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"`
	Publisher     *string `json:"publisher,omitempty"`
	Year          *int    `json:"year,omitempty"`
	Category      *string `json:"category,omitempty"`
	Pages         *int    `json:"pages,omitempty"`
	ShelfLocation *string `json:"shelf_location,omitempty"`
}

// Validate validates a CreateTitleRequest
func (r *CreateTitleRequest) Validate() []FieldError {
	var errors []FieldError

	if r.Title == "" {
		errors = append(errors, FieldError{Field: "title", Message: "title is required"})
	} else if len(r.Title) > MaxTitleLength {
		errors = append(errors, FieldError{Field: "title", Message: "title too long"})
	}

	if r.Author == "" {
		errors = append(errors, FieldError{Field: "author", Message: "author is required"})
	} else if len(r.Author) > MaxAuthorLength {
		errors = append(errors, FieldError{Field: "author", Message: "author too long"})
	}

	if r.ISBN == "" {
		errors = append(errors, FieldError{Field: "isbn", Message: "isbn is required"})
	} else if !ValidISBN13(r.ISBN) {
		errors = append(errors, FieldError{Field: "isbn", Message: "must be a valid 13-digit ISBN"})
	}

	if r.Category != nil && len(*r.Category) > MaxCategoryLength {
		errors = append(errors, FieldError{Field: "category", Message: "category too long"})
	}

	if r.Pages != nil && *r.Pages <= 0 {
		errors = append(errors, FieldError{Field: "pages", Message: "pages must be positive"})
	}

	return errors
}

// TitleAvailability annotates a search result with circulation state the
// catalog surface needs: how many copies are free, whether the caller
// already waits for it, and the soonest expected return when none are free.
type TitleAvailability struct {
	Title                Title      `json:"title"`
	AvailableCopies      int        `json:"available_copies"`
	HasActiveReservation bool       `json:"has_active_reservation"`
	EarliestReturn       *time.Time `json:"earliest_return,omitempty"`
}

// Package model defines domain entities and data structures for the
// circulation engine.
//
// The model package contains all struct definitions for domain objects,
// request types, and validation errors. Models are used across all layers
// of the application.
//
// # Domain Entities
//
// Core domain entities include:
//
//   - Title: A catalog entry identified by ISBN; never mutated by circulation
//   - Copy: One physical instance of a Title with a circulation status
//   - Reader: A registered borrower with a per-reader loan limit
//   - Loan: One Copy borrowed by one Reader, open until its return date is set
//   - Reservation: A Reader's place in a Title's waiting line
//
// # Status Lifecycles
//
// Copy and Reservation statuses are plain strings with package constants:
//
//	const (
//	    CopyStatusAvailable      = "available"
//	    CopyStatusOnLoan         = "on_loan"
//	    CopyStatusAwaitingPickup = "awaiting_pickup"
//	)
//
// Only the lending and reservation services transition copy statuses;
// in_repair and lost are entered through catalog administration and are
// always rejected by loan eligibility.
//
// # Validation
//
// Externally-supplied request types expose Validate() []FieldError. A
// non-empty result can be wrapped in a *ValidationError for callers that
// need a single error value.
package model

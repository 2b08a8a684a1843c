package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling at the call sites predictable.

// ===== Catalog Errors =====
var (
	ErrTitleNotFound      = errors.New("title not found")
	ErrCopyNotFound       = errors.New("copy not found")
	ErrISBNAlreadyExists  = errors.New("a title with this ISBN already exists")
	ErrDuplicateInventory = errors.New("a copy with this inventory number already exists")
	ErrCopyOnLoan         = errors.New("copy is out on loan")
	ErrCopyHeldForPickup  = errors.New("copy is earmarked for a reservation")
	ErrCopyNotInRepair    = errors.New("copy is not in repair or lost")
)

// ===== Reader Errors =====
var (
	ErrReaderNotFound      = errors.New("reader not found")
	ErrReaderAlreadyExists = errors.New("email already registered")
	ErrInvalidLoanLimit    = errors.New("loan limit must be positive")
)

// ===== Lending Errors =====
var (
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanAlreadyReturned  = errors.New("loan already returned")
	ErrLoanNotReturned      = errors.New("loan is still open")
	ErrLoanLimitExceeded    = errors.New("reader has reached their loan limit")
	ErrIneligibleCopy       = errors.New("copy is not eligible for lending")
	ErrCopyUnavailable      = errors.New("copy is not available for this operation")
	ErrNotReservationHolder = errors.New("copy is held for another reader")
)

// ===== Reservation Errors =====
var (
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrReservationNotActive    = errors.New("reservation is no longer active")
	ErrDuplicateReservation    = errors.New("reader already has an active reservation for this title")
	ErrTitleCurrentlyAvailable = errors.New("title has available copies; borrow instead of reserving")
	ErrInconsistentState       = errors.New("reservation state is inconsistent with copy state")
)

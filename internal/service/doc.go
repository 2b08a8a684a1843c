// Package service implements the business logic of the circulation
// engine.
//
// The service package contains the lending and reservation state
// machines, the catalog and reader administration surface, and the
// read-only reporting aggregates. Services are the only writers of
// circulation state; everything below them is data access, everything
// above them is wiring.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with repository dependencies
//   - Methods implement business operations with validation before any write
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Context is passed through for cancellation
//
// # Repository Interfaces
//
// Services define their own repository interfaces, allowing:
//
//   - Easy mocking for unit tests
//   - Decoupling from specific database implementations
//   - Clear contracts for data access requirements
//
// # Concurrency
//
// Racing callers are arbitrated by the store, not in process. Multi-record
// transitions commit as guarded atomic batches in the repositories; a
// service that loses a race sees database.ErrConflict and either maps it
// to a domain error (checkout) or re-reads and retries against fresh state
// (queue advancement, hold expiry).
//
// # Example Usage
//
//	lending := NewLendingService(LendingServiceConfig{
//	    LoanRepo:        loanRepository,
//	    CopyRepo:        copyRepository,
//	    ReaderRepo:      readerRepository,
//	    ReservationRepo: reservationRepository,
//	    Queue:           reservations,
//	})
//	loan, err := lending.CreateLoan(ctx, &model.CheckoutRequest{
//	    CopyID:   copyID,
//	    ReaderID: readerID,
//	})
package service

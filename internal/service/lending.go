package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// LoanRepository defines the interface for loan storage
type LoanRepository interface {
	CreateWithClaim(ctx context.Context, loan *model.Loan, reservationID string) error
	Get(ctx context.Context, loanID string) (*model.Loan, error)
	GetOpenByCopy(ctx context.Context, copyID string) (*model.Loan, error)
	CountOpenByReader(ctx context.Context, readerID string) (int, error)
	ListByReader(ctx context.Context, readerID string) ([]*model.Loan, error)
	Close(ctx context.Context, loanID string, returnDate time.Time, feeCents int64) error
	ReopenWithReclaim(ctx context.Context, loanID, copyID, demoteReservationID string) error
	DueWithin(ctx context.Context, from, to time.Time) ([]*model.DueSoonLoan, error)
	Overdue(ctx context.Context, asOf time.Time) ([]*model.OverdueLoan, error)
}

// QueueAdvancer hands a freed copy onward: to the next waiting
// reservation, or back to the shelf.
type QueueAdvancer interface {
	AdvanceQueue(ctx context.Context, titleID string, copy *model.Copy) error
}

// LendingService handles the loan lifecycle
type LendingService struct {
	repo            LoanRepository
	copyRepo        CopyRepository
	readerRepo      ReaderRepository
	reservationRepo ReservationRepository
	queue           QueueAdvancer

	loanPeriodDays    int
	dailyLateFeeCents int64
	now               func() time.Time
}

// LendingServiceConfig holds configuration for the lending service
type LendingServiceConfig struct {
	LoanRepo        LoanRepository
	CopyRepo        CopyRepository
	ReaderRepo      ReaderRepository
	ReservationRepo ReservationRepository
	Queue           QueueAdvancer

	// LoanPeriodDays and DailyLateFeeCents override the lending policy
	// defaults. Zero means the default.
	LoanPeriodDays    int
	DailyLateFeeCents int64

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// NewLendingService creates a new lending service
func NewLendingService(cfg LendingServiceConfig) *LendingService {
	period := cfg.LoanPeriodDays
	if period <= 0 {
		period = model.DefaultLoanPeriodDays
	}
	fee := cfg.DailyLateFeeCents
	if fee <= 0 {
		fee = model.DefaultDailyLateFeeCents
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &LendingService{
		repo:              cfg.LoanRepo,
		copyRepo:          cfg.CopyRepo,
		readerRepo:        cfg.ReaderRepo,
		reservationRepo:   cfg.ReservationRepo,
		queue:             cfg.Queue,
		loanPeriodDays:    period,
		dailyLateFeeCents: fee,
		now:               now,
	}
}

// CreateLoan lends a copy to a reader. Eligible copies are available ones,
// plus awaiting_pickup copies held by a ready reservation for this reader,
// which is fulfilled in the same transaction as the claim. The claim
// itself is status-guarded, so a racing checkout of the same copy loses
// cleanly with ErrIneligibleCopy.
func (s *LendingService) CreateLoan(ctx context.Context, req *model.CheckoutRequest) (*model.Loan, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	copy, err := s.copyRepo.Get(ctx, req.CopyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}
	if copy == nil {
		return nil, ErrCopyNotFound
	}

	reader, err := s.readerRepo.Get(ctx, req.ReaderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}
	if reader == nil {
		return nil, ErrReaderNotFound
	}

	reservationID := ""
	switch copy.Status {
	case model.CopyStatusAvailable:
		// Straight off the shelf.
	case model.CopyStatusAwaitingPickup:
		reservation, err := s.reservationRepo.GetReadyByTitleAndReader(ctx, copy.TitleID, reader.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check reservation: %w", err)
		}
		if reservation == nil {
			return nil, ErrNotReservationHolder
		}
		if reservation.CopyID != nil && *reservation.CopyID != copy.ID {
			return nil, ErrNotReservationHolder
		}
		reservationID = reservation.ID
	default:
		return nil, ErrIneligibleCopy
	}

	openCount, err := s.repo.CountOpenByReader(ctx, reader.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count open loans: %w", err)
	}
	limit := reader.LoanLimit
	if limit <= 0 {
		limit = model.DefaultLoanLimit
	}
	if openCount >= limit {
		return nil, ErrLoanLimitExceeded
	}

	loanDate := s.now()
	if req.LoanDate != nil {
		loanDate = *req.LoanDate
	}
	dueDate := loanDate.AddDate(0, 0, s.loanPeriodDays)
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}

	loan := &model.Loan{
		CopyID:   copy.ID,
		ReaderID: reader.ID,
		LoanDate: loanDate,
		DueDate:  dueDate,
		Notes:    req.Notes,
	}

	if err := s.repo.CreateWithClaim(ctx, loan, reservationID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrIneligibleCopy
		}
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	return loan, nil
}

// CloseLoan records the return of a copy. Only the first close counts; the
// late fee is whole days past due times the daily rate. Once the loan is
// closed the freed copy moves to the next waiting reservation or back to
// the shelf.
func (s *LendingService) CloseLoan(ctx context.Context, loanID string, returnDate time.Time) (*model.Loan, error) {
	loan, err := s.repo.Get(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	if !loan.IsOpen() {
		return nil, ErrLoanAlreadyReturned
	}

	fee := s.LateFee(loan.DueDate, returnDate)
	if err := s.repo.Close(ctx, loanID, returnDate, fee); err != nil {
		return nil, fmt.Errorf("failed to close loan: %w", err)
	}
	loan.ReturnDate = &returnDate
	loan.FeeCents = fee

	copy, err := s.copyRepo.Get(ctx, loan.CopyID)
	if err != nil {
		return loan, fmt.Errorf("failed to get copy after close: %w", err)
	}
	if copy == nil {
		return loan, ErrCopyNotFound
	}
	if err := s.queue.AdvanceQueue(ctx, copy.TitleID, copy); err != nil {
		return loan, fmt.Errorf("failed to advance queue: %w", err)
	}

	return loan, nil
}

// ReopenLoan undoes a mistaken return. The copy is pulled back onto the
// loan; if the return had already earmarked it for a waiting reservation,
// that reservation goes back to the head of the line, keyed by its
// original creation time. A copy that has since been lent again, repaired
// out or lost cannot be reclaimed.
func (s *LendingService) ReopenLoan(ctx context.Context, loanID string) (*model.Loan, error) {
	loan, err := s.repo.Get(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	if loan.IsOpen() {
		return nil, ErrLoanNotReturned
	}

	open, err := s.repo.GetOpenByCopy(ctx, loan.CopyID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open loan: %w", err)
	}
	if open != nil {
		return nil, ErrCopyUnavailable
	}

	copy, err := s.copyRepo.Get(ctx, loan.CopyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}
	if copy == nil {
		return nil, ErrCopyNotFound
	}

	demoteID := ""
	if copy.Status == model.CopyStatusAwaitingPickup {
		reservation, err := s.reservationRepo.GetReadyByCopy(ctx, copy.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check earmarking reservation: %w", err)
		}
		if reservation != nil {
			demoteID = reservation.ID
		}
	}

	if err := s.repo.ReopenWithReclaim(ctx, loan.ID, copy.ID, demoteID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, ErrCopyUnavailable
		}
		return nil, fmt.Errorf("failed to reopen loan: %w", err)
	}

	loan.ReturnDate = nil
	loan.FeeCents = 0
	return loan, nil
}

// LoansDueWithin lists open loans due between asOf and asOf plus days,
// inclusive. This is the decision feed for due reminders; delivery is
// someone else's problem.
func (s *LendingService) LoansDueWithin(ctx context.Context, asOf time.Time, days int) ([]*model.DueSoonLoan, error) {
	return s.repo.DueWithin(ctx, asOf, asOf.AddDate(0, 0, days))
}

// OverdueLoans lists open loans past due as of asOf with days late and the
// fee they would owe if returned today.
func (s *LendingService) OverdueLoans(ctx context.Context, asOf time.Time) ([]*model.OverdueLoan, error) {
	rows, err := s.repo.Overdue(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}

	for _, row := range rows {
		days := daysLate(row.DueDate, asOf)
		row.DaysLate = days
		row.ProjectedFeeCents = int64(days) * s.dailyLateFeeCents
	}
	return rows, nil
}

// ListReaderLoans retrieves a reader's loan history
func (s *LendingService) ListReaderLoans(ctx context.Context, readerID string) ([]*model.Loan, error) {
	return s.repo.ListByReader(ctx, readerID)
}

// LateFee computes the fee for a return: whole days past due times the
// daily rate, never negative. Day boundaries are calendar dates, so a
// return any time on the due date costs nothing.
func (s *LendingService) LateFee(dueDate, returnDate time.Time) int64 {
	days := daysLate(dueDate, returnDate)
	if days <= 0 {
		return 0
	}
	return int64(days) * s.dailyLateFeeCents
}

// daysLate counts calendar days from dueDate to asOf, zero when not late.
func daysLate(dueDate, asOf time.Time) int {
	due := time.Date(dueDate.Year(), dueDate.Month(), dueDate.Day(), 0, 0, 0, 0, time.UTC)
	at := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	days := int(at.Sub(due).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

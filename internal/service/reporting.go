package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shelfmark/circulation/internal/model"
)

// ReportingLoanRepository is the slice of loan storage the reports read.
type ReportingLoanRepository interface {
	CountOpen(ctx context.Context) (int, error)
	CountOverdue(ctx context.Context, asOf time.Time) (int, error)
	MostBorrowed(ctx context.Context, limit int) ([]*model.TitleLoanCount, error)
	MonthlyTrends(ctx context.Context, since time.Time) ([]*model.MonthlyLoanTrend, error)
}

// mostBorrowedLimit is the length of the most-borrowed ranking in the
// stats snapshot.
const mostBorrowedLimit = 5

// ReportingService serves read-only aggregates for external consumers.
// Nothing here mutates circulation state.
type ReportingService struct {
	titleRepo  TitleRepository
	copyRepo   CopyRepository
	readerRepo ReaderRepository
	loanRepo   ReportingLoanRepository

	now func() time.Time
}

// ReportingServiceConfig holds configuration for the reporting service
type ReportingServiceConfig struct {
	TitleRepo  TitleRepository
	CopyRepo   CopyRepository
	ReaderRepo ReaderRepository
	LoanRepo   ReportingLoanRepository

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// NewReportingService creates a new reporting service
func NewReportingService(cfg ReportingServiceConfig) *ReportingService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReportingService{
		titleRepo:  cfg.TitleRepo,
		copyRepo:   cfg.CopyRepo,
		readerRepo: cfg.ReaderRepo,
		loanRepo:   cfg.LoanRepo,
		now:        now,
	}
}

// LibraryStats assembles the aggregate snapshot: catalog and reader
// counts, loan load, and the most-borrowed ranking.
func (s *ReportingService) LibraryStats(ctx context.Context) (*model.LibraryStats, error) {
	stats := &model.LibraryStats{}

	var err error
	if stats.TitleCount, err = s.titleRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count titles: %w", err)
	}
	if stats.CopyCount, err = s.copyRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count copies: %w", err)
	}
	if stats.ReaderCount, err = s.readerRepo.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count readers: %w", err)
	}
	if stats.OpenLoanCount, err = s.loanRepo.CountOpen(ctx); err != nil {
		return nil, fmt.Errorf("failed to count open loans: %w", err)
	}
	if stats.OverdueLoanCount, err = s.loanRepo.CountOverdue(ctx, s.now()); err != nil {
		return nil, fmt.Errorf("failed to count overdue loans: %w", err)
	}

	ranking, err := s.loanRepo.MostBorrowed(ctx, mostBorrowedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank titles: %w", err)
	}
	stats.MostBorrowed = make([]model.TitleLoanCount, 0, len(ranking))
	for _, row := range ranking {
		stats.MostBorrowed = append(stats.MostBorrowed, *row)
	}

	return stats, nil
}

// MonthlyLoanTrends returns loan counts per calendar month and title
// category for the last months months. The rows feed an external chart
// generator; nothing is rendered here.
func (s *ReportingService) MonthlyLoanTrends(ctx context.Context, months int) ([]*model.MonthlyLoanTrend, error) {
	if months <= 0 {
		months = 12
	}
	since := s.now().AddDate(0, -months, 0)
	return s.loanRepo.MonthlyTrends(ctx, since)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// TitleRepository defines the interface for catalog title storage
type TitleRepository interface {
	Create(ctx context.Context, title *model.Title) error
	Get(ctx context.Context, titleID string) (*model.Title, error)
	GetByISBN(ctx context.Context, isbn string) (*model.Title, error)
	Search(ctx context.Context, q string, limit int) ([]*model.Title, error)
	Count(ctx context.Context) (int, error)
}

// CopyRepository defines the interface for physical copy storage
type CopyRepository interface {
	Create(ctx context.Context, copy *model.Copy) error
	Get(ctx context.Context, copyID string) (*model.Copy, error)
	ListByTitle(ctx context.Context, titleID string) ([]*model.Copy, error)
	FirstByTitleAndStatus(ctx context.Context, titleID, status string) (*model.Copy, error)
	CountByTitleAndStatus(ctx context.Context, titleID, status string) (int, error)
	UpdateStatusFrom(ctx context.Context, copyID string, from []string, to string) error
	Count(ctx context.Context) (int, error)
}

// CatalogLoanRepository is the slice of loan storage the catalog needs for
// availability annotations.
type CatalogLoanRepository interface {
	EarliestDueByTitle(ctx context.Context, titleID string) (*time.Time, error)
}

// CatalogService handles titles, copies and their administrative statuses
type CatalogService struct {
	titleRepo       TitleRepository
	copyRepo        CopyRepository
	reservationRepo ReservationRepository
	loanRepo        CatalogLoanRepository
	queue           QueueAdvancer
}

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	TitleRepo       TitleRepository
	CopyRepo        CopyRepository
	ReservationRepo ReservationRepository
	LoanRepo        CatalogLoanRepository
	Queue           QueueAdvancer
}

// NewCatalogService creates a new catalog service
func NewCatalogService(cfg CatalogServiceConfig) *CatalogService {
	return &CatalogService{
		titleRepo:       cfg.TitleRepo,
		copyRepo:        cfg.CopyRepo,
		reservationRepo: cfg.ReservationRepo,
		loanRepo:        cfg.LoanRepo,
		queue:           cfg.Queue,
	}
}

// CreateTitle adds a title to the catalog
func (s *CatalogService) CreateTitle(ctx context.Context, req *model.CreateTitleRequest) (*model.Title, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	title := &model.Title{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		Publisher:     req.Publisher,
		Year:          req.Year,
		Category:      req.Category,
		Pages:         req.Pages,
		ShelfLocation: req.ShelfLocation,
	}

	if err := s.titleRepo.Create(ctx, title); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrISBNAlreadyExists
		}
		return nil, fmt.Errorf("failed to create title: %w", err)
	}

	return title, nil
}

// GetTitle retrieves a title by ID
func (s *CatalogService) GetTitle(ctx context.Context, titleID string) (*model.Title, error) {
	title, err := s.titleRepo.Get(ctx, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	if title == nil {
		return nil, ErrTitleNotFound
	}
	return title, nil
}

// SearchTitles matches titles by title, author or ISBN substring and
// annotates each hit with circulation state: free copies, whether the
// caller already waits for it, and the soonest expected return when
// nothing is free. readerID may be empty for anonymous searches.
func (s *CatalogService) SearchTitles(ctx context.Context, q, readerID string, limit int) ([]*model.TitleAvailability, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	titles, err := s.titleRepo.Search(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search titles: %w", err)
	}

	results := make([]*model.TitleAvailability, 0, len(titles))
	for _, title := range titles {
		entry := &model.TitleAvailability{Title: *title}

		available, err := s.copyRepo.CountByTitleAndStatus(ctx, title.ID, model.CopyStatusAvailable)
		if err != nil {
			return nil, fmt.Errorf("failed to count available copies: %w", err)
		}
		entry.AvailableCopies = available

		if readerID != "" {
			reservation, err := s.reservationRepo.GetActiveByTitleAndReader(ctx, title.ID, readerID)
			if err != nil {
				return nil, fmt.Errorf("failed to check reservation: %w", err)
			}
			entry.HasActiveReservation = reservation != nil
		}

		if available == 0 {
			earliest, err := s.loanRepo.EarliestDueByTitle(ctx, title.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to get earliest return: %w", err)
			}
			entry.EarliestReturn = earliest
		}

		results = append(results, entry)
	}

	return results, nil
}

// AddCopy registers a physical copy of a title. New copies go straight to
// the shelf as available.
func (s *CatalogService) AddCopy(ctx context.Context, req *model.AddCopyRequest) (*model.Copy, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	title, err := s.titleRepo.Get(ctx, req.TitleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	if title == nil {
		return nil, ErrTitleNotFound
	}

	copy := &model.Copy{
		TitleID:         title.ID,
		InventoryNumber: req.InventoryNumber,
		Status:          model.CopyStatusAvailable,
	}

	if err := s.copyRepo.Create(ctx, copy); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicateInventory
		}
		return nil, fmt.Errorf("failed to create copy: %w", err)
	}

	return copy, nil
}

// GetCopy retrieves a copy by ID
func (s *CatalogService) GetCopy(ctx context.Context, copyID string) (*model.Copy, error) {
	copy, err := s.copyRepo.Get(ctx, copyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}
	if copy == nil {
		return nil, ErrCopyNotFound
	}
	return copy, nil
}

// ListCopies retrieves all copies of a title
func (s *CatalogService) ListCopies(ctx context.Context, titleID string) ([]*model.Copy, error) {
	return s.copyRepo.ListByTitle(ctx, titleID)
}

// MarkInRepair pulls a copy off the shelf for repair. Copies that are out
// with a reader or earmarked for pickup stay where they are.
func (s *CatalogService) MarkInRepair(ctx context.Context, copyID string) error {
	return s.setAdminStatus(ctx, copyID, model.CopyStatusInRepair)
}

// MarkLost records a copy as lost. Same guards as MarkInRepair.
func (s *CatalogService) MarkLost(ctx context.Context, copyID string) error {
	return s.setAdminStatus(ctx, copyID, model.CopyStatusLost)
}

func (s *CatalogService) setAdminStatus(ctx context.Context, copyID, status string) error {
	copy, err := s.copyRepo.Get(ctx, copyID)
	if err != nil {
		return fmt.Errorf("failed to get copy: %w", err)
	}
	if copy == nil {
		return ErrCopyNotFound
	}

	switch copy.Status {
	case model.CopyStatusOnLoan:
		return ErrCopyOnLoan
	case model.CopyStatusAwaitingPickup:
		return ErrCopyHeldForPickup
	case status:
		return nil
	}

	if err := s.copyRepo.UpdateStatusFrom(ctx, copyID, []string{copy.Status}, status); err != nil {
		return fmt.Errorf("failed to update copy status: %w", err)
	}
	return nil
}

// ReturnToShelf brings a repaired or found copy back into circulation.
// The copy does not simply become available: if readers are waiting for
// the title it goes to the head of the line.
func (s *CatalogService) ReturnToShelf(ctx context.Context, copyID string) error {
	copy, err := s.copyRepo.Get(ctx, copyID)
	if err != nil {
		return fmt.Errorf("failed to get copy: %w", err)
	}
	if copy == nil {
		return ErrCopyNotFound
	}

	if copy.Status != model.CopyStatusInRepair && copy.Status != model.CopyStatusLost {
		return ErrCopyNotInRepair
	}

	return s.queue.AdvanceQueue(ctx, copy.TitleID, copy)
}

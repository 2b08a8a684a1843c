package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// ReaderRepository defines the interface for reader storage
type ReaderRepository interface {
	Create(ctx context.Context, reader *model.Reader) error
	Get(ctx context.Context, readerID string) (*model.Reader, error)
	GetByEmail(ctx context.Context, email string) (*model.Reader, error)
	UpdateLoanLimit(ctx context.Context, readerID string, limit int) error
	Count(ctx context.Context) (int, error)
}

// ReaderLoanCounter is the slice of loan storage the reader service needs.
type ReaderLoanCounter interface {
	CountOpenByReader(ctx context.Context, readerID string) (int, error)
}

// ReaderService handles reader registration and staff adjustments
type ReaderService struct {
	repo     ReaderRepository
	loanRepo ReaderLoanCounter
}

// ReaderServiceConfig holds configuration for the reader service
type ReaderServiceConfig struct {
	ReaderRepo ReaderRepository
	LoanRepo   ReaderLoanCounter
}

// NewReaderService creates a new reader service
func NewReaderService(cfg ReaderServiceConfig) *ReaderService {
	return &ReaderService{
		repo:     cfg.ReaderRepo,
		loanRepo: cfg.LoanRepo,
	}
}

// Register creates a reader with a generated card number and the default
// loan limit
func (s *ReaderService) Register(ctx context.Context, req *model.RegisterReaderRequest) (*model.Reader, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, model.NewValidationError(errs)
	}

	existing, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, ErrReaderAlreadyExists
	}

	reader := &model.Reader{
		Name:       req.Name,
		Email:      req.Email,
		CardNumber: newCardNumber(),
		LoanLimit:  model.DefaultLoanLimit,
	}

	if err := s.repo.Create(ctx, reader); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrReaderAlreadyExists
		}
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}

	return reader, nil
}

// Get retrieves a reader by ID
func (s *ReaderService) Get(ctx context.Context, readerID string) (*model.Reader, error) {
	reader, err := s.repo.Get(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}
	if reader == nil {
		return nil, ErrReaderNotFound
	}
	return reader, nil
}

// SetLoanLimit adjusts how many loans a reader may hold open at once.
// Staff operation; lowering the limit below the current open count is
// allowed and only blocks further checkouts.
func (s *ReaderService) SetLoanLimit(ctx context.Context, readerID string, limit int) error {
	if limit <= 0 {
		return ErrInvalidLoanLimit
	}

	reader, err := s.repo.Get(ctx, readerID)
	if err != nil {
		return fmt.Errorf("failed to get reader: %w", err)
	}
	if reader == nil {
		return ErrReaderNotFound
	}

	if err := s.repo.UpdateLoanLimit(ctx, readerID, limit); err != nil {
		return fmt.Errorf("failed to update loan limit: %w", err)
	}
	return nil
}

// OpenLoanCount reports how many loans a reader currently has open
func (s *ReaderService) OpenLoanCount(ctx context.Context, readerID string) (int, error) {
	reader, err := s.repo.Get(ctx, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to get reader: %w", err)
	}
	if reader == nil {
		return 0, ErrReaderNotFound
	}
	return s.loanRepo.CountOpenByReader(ctx, readerID)
}

// newCardNumber generates a library card number. Uniqueness is enforced
// by the store; the uuid source makes collisions a non-event in practice.
func newCardNumber() string {
	return "LIB-" + strings.ToUpper(uuid.NewString()[:8])
}

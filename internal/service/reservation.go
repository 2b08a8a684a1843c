package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// ReservationRepository defines the interface for reservation storage
type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	Get(ctx context.Context, reservationID string) (*model.Reservation, error)
	GetActiveByTitleAndReader(ctx context.Context, titleID, readerID string) (*model.Reservation, error)
	GetReadyByTitleAndReader(ctx context.Context, titleID, readerID string) (*model.Reservation, error)
	GetReadyByCopy(ctx context.Context, copyID string) (*model.Reservation, error)
	OldestWaiting(ctx context.Context, titleID string) (*model.Reservation, error)
	ListByReader(ctx context.Context, readerID string) ([]*model.Reservation, error)
	CountWaitingByTitle(ctx context.Context, titleID string) (int, error)
	ExpiredReady(ctx context.Context, asOf time.Time) ([]*model.Reservation, error)
	UpdateStatus(ctx context.Context, reservationID, fromStatus, toStatus string) error
	Promote(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error
	ExpireAndAdvance(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error
}

// ReservationService handles the waiting line and hold lifecycle
type ReservationService struct {
	repo       ReservationRepository
	titleRepo  TitleRepository
	copyRepo   CopyRepository
	readerRepo ReaderRepository

	pickupWindowDays int
	now              func() time.Time
}

// ReservationServiceConfig holds configuration for the reservation service
type ReservationServiceConfig struct {
	ReservationRepo ReservationRepository
	TitleRepo       TitleRepository
	CopyRepo        CopyRepository
	ReaderRepo      ReaderRepository

	// PickupWindowDays is how long a promoted hold keeps its copy.
	// Zero means the default.
	PickupWindowDays int

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// NewReservationService creates a new reservation service
func NewReservationService(cfg ReservationServiceConfig) *ReservationService {
	window := cfg.PickupWindowDays
	if window <= 0 {
		window = model.DefaultPickupWindowDays
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		repo:             cfg.ReservationRepo,
		titleRepo:        cfg.TitleRepo,
		copyRepo:         cfg.CopyRepo,
		readerRepo:       cfg.ReaderRepo,
		pickupWindowDays: window,
		now:              now,
	}
}

// Create places a reader in a title's waiting line. A reservation only
// makes sense when nothing is on the shelf; otherwise the reader should
// simply borrow.
func (s *ReservationService) Create(ctx context.Context, titleID, readerID string) (*model.Reservation, error) {
	title, err := s.titleRepo.Get(ctx, titleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	if title == nil {
		return nil, ErrTitleNotFound
	}

	reader, err := s.readerRepo.Get(ctx, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reader: %w", err)
	}
	if reader == nil {
		return nil, ErrReaderNotFound
	}

	available, err := s.copyRepo.CountByTitleAndStatus(ctx, titleID, model.CopyStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to count available copies: %w", err)
	}
	if available > 0 {
		return nil, ErrTitleCurrentlyAvailable
	}

	existing, err := s.repo.GetActiveByTitleAndReader(ctx, titleID, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing reservation: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateReservation
	}

	reservation := &model.Reservation{
		TitleID:  titleID,
		ReaderID: readerID,
		Status:   model.ReservationStatusWaiting,
	}
	if err := s.repo.Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return reservation, nil
}

// Get retrieves a reservation by ID
func (s *ReservationService) Get(ctx context.Context, reservationID string) (*model.Reservation, error) {
	reservation, err := s.repo.Get(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return nil, ErrReservationNotFound
	}
	return reservation, nil
}

// ListByReader retrieves a reader's reservations
func (s *ReservationService) ListByReader(ctx context.Context, readerID string) ([]*model.Reservation, error) {
	return s.repo.ListByReader(ctx, readerID)
}

// QueueLength reports how many readers are waiting for a title
func (s *ReservationService) QueueLength(ctx context.Context, titleID string) (int, error) {
	return s.repo.CountWaitingByTitle(ctx, titleID)
}

// Cancel withdraws a reader's own reservation. Cancelling a hold that
// already has a copy earmarked hands that copy to the next reader in line.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, readerID string) error {
	reservation, err := s.repo.Get(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return ErrReservationNotFound
	}
	if reservation.ReaderID != readerID {
		return ErrNotReservationHolder
	}

	switch reservation.Status {
	case model.ReservationStatusWaiting:
		return s.repo.UpdateStatus(ctx, reservationID,
			model.ReservationStatusWaiting, model.ReservationStatusCancelled)

	case model.ReservationStatusReadyForPickup:
		copyID, err := s.resolveEarmarkedCopy(ctx, reservation)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, reservationID,
			model.ReservationStatusReadyForPickup, model.ReservationStatusCancelled); err != nil {
			return fmt.Errorf("failed to cancel reservation: %w", err)
		}
		if copyID == "" {
			return ErrInconsistentState
		}
		copy, err := s.copyRepo.Get(ctx, copyID)
		if err != nil {
			return fmt.Errorf("failed to get earmarked copy: %w", err)
		}
		if copy == nil {
			return ErrInconsistentState
		}
		return s.AdvanceQueue(ctx, reservation.TitleID, copy)

	default:
		return ErrReservationNotActive
	}
}

// AdvanceQueue hands a freed copy to the oldest waiting reservation for
// its title, or shelves it as available when nobody waits. The promotion
// commits reservation and copy together; when a candidate vanishes under
// us the next one is tried, and when the copy itself moved somebody else
// already advanced the queue, which is the outcome we wanted.
func (s *ReservationService) AdvanceQueue(ctx context.Context, titleID string, copy *model.Copy) error {
	current := copy.Status

	for {
		next, err := s.repo.OldestWaiting(ctx, titleID)
		if err != nil {
			return fmt.Errorf("failed to get oldest waiting reservation: %w", err)
		}

		if next == nil {
			if current == model.CopyStatusAvailable {
				return nil
			}
			if err := s.copyRepo.UpdateStatusFrom(ctx, copy.ID,
				[]string{current}, model.CopyStatusAvailable); err != nil {
				return fmt.Errorf("failed to shelve copy: %w", err)
			}
			return nil
		}

		expiresOn := s.now().AddDate(0, 0, s.pickupWindowDays)
		err = s.repo.Promote(ctx, next.ID, copy.ID, current, expiresOn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("failed to promote reservation: %w", err)
		}

		fresh, err := s.copyRepo.Get(ctx, copy.ID)
		if err != nil {
			return fmt.Errorf("failed to re-read copy: %w", err)
		}
		if fresh == nil {
			return ErrCopyNotFound
		}
		if fresh.Status != current {
			// The copy moved on without us.
			return nil
		}
		// The candidate left the line; try the next one.
	}
}

// Expire releases a lapsed hold. The reservation must still be
// ready_for_pickup with its pickup window ended as of asOf; anything else
// is a no-op, which is what makes the sweep idempotent. The freed copy is
// re-earmarked for the next waiting reader or shelved, atomically with the
// expiry.
func (s *ReservationService) Expire(ctx context.Context, reservation *model.Reservation, asOf time.Time) error {
	if reservation == nil {
		return nil
	}
	if reservation.Status != model.ReservationStatusReadyForPickup {
		return nil
	}
	if reservation.ExpiresOn == nil || !reservation.ExpiresOn.Before(asOf) {
		return nil
	}

	copyID, err := s.resolveEarmarkedCopy(ctx, reservation)
	if err != nil {
		return err
	}
	if copyID == "" {
		// The hold points at nothing. Expire it anyway so it stops
		// surfacing in every sweep, and report the inconsistency.
		if err := s.repo.UpdateStatus(ctx, reservation.ID,
			model.ReservationStatusReadyForPickup, model.ReservationStatusExpired); err != nil {
			return fmt.Errorf("failed to expire reservation: %w", err)
		}
		return ErrInconsistentState
	}

	for {
		next, err := s.repo.OldestWaiting(ctx, reservation.TitleID)
		if err != nil {
			return fmt.Errorf("failed to get oldest waiting reservation: %w", err)
		}

		nextID := ""
		if next != nil {
			nextID = next.ID
		}

		err = s.repo.ExpireAndAdvance(ctx, reservation.ID, copyID, nextID,
			s.now().AddDate(0, 0, s.pickupWindowDays))
		if err == nil {
			return nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("failed to expire reservation: %w", err)
		}

		fresh, err := s.repo.Get(ctx, reservation.ID)
		if err != nil {
			return fmt.Errorf("failed to re-read reservation: %w", err)
		}
		if fresh == nil || fresh.Status != model.ReservationStatusReadyForPickup {
			// Fulfilled or cancelled while we were expiring it.
			return nil
		}

		freshCopy, err := s.copyRepo.Get(ctx, copyID)
		if err != nil {
			return fmt.Errorf("failed to re-read copy: %w", err)
		}
		if freshCopy == nil || freshCopy.Status != model.CopyStatusAwaitingPickup {
			// The copy left pickup without this hold moving, so retrying
			// can never win. Expire the hold on its own and report the
			// mismatch.
			if err := s.repo.UpdateStatus(ctx, reservation.ID,
				model.ReservationStatusReadyForPickup, model.ReservationStatusExpired); err != nil {
				return fmt.Errorf("failed to expire reservation: %w", err)
			}
			return ErrInconsistentState
		}
		// The next candidate changed under us; recompute and retry.
	}
}

// SweepResult summarizes one expiry sweep run.
type SweepResult struct {
	Processed int
	Failed    int
}

// RunExpirySweep expires every hold whose pickup window ended before asOf.
// Per-item failures are collected, never fatal; re-running the sweep on
// unchanged state processes nothing.
func (s *ReservationService) RunExpirySweep(ctx context.Context, asOf time.Time) (SweepResult, error) {
	var result SweepResult

	expired, err := s.repo.ExpiredReady(ctx, asOf)
	if err != nil {
		return result, fmt.Errorf("failed to list expired holds: %w", err)
	}

	var errs []error
	for _, reservation := range expired {
		if err := s.Expire(ctx, reservation, asOf); err != nil {
			if errors.Is(err, ErrInconsistentState) {
				// Expired anyway; its copy was unaccounted for.
				result.Processed++
				errs = append(errs, fmt.Errorf("reservation %s: %w", reservation.ID, err))
				continue
			}
			result.Failed++
			errs = append(errs, fmt.Errorf("reservation %s: %w", reservation.ID, err))
			continue
		}
		result.Processed++
	}

	return result, errors.Join(errs...)
}

// resolveEarmarkedCopy finds the copy a ready_for_pickup reservation
// holds: the stored link when it still points at an awaiting_pickup
// copy, else the title's awaiting_pickup copy. Empty when neither
// exists.
func (s *ReservationService) resolveEarmarkedCopy(ctx context.Context, reservation *model.Reservation) (string, error) {
	if reservation.CopyID != nil && *reservation.CopyID != "" {
		copy, err := s.copyRepo.Get(ctx, *reservation.CopyID)
		if err != nil {
			return "", fmt.Errorf("failed to get earmarked copy: %w", err)
		}
		if copy != nil && copy.Status == model.CopyStatusAwaitingPickup {
			return copy.ID, nil
		}
		// The stored link is stale; see whether the title holds a copy
		// for pickup at all.
	}

	copy, err := s.copyRepo.FirstByTitleAndStatus(ctx, reservation.TitleID, model.CopyStatusAwaitingPickup)
	if err != nil {
		return "", fmt.Errorf("failed to look up earmarked copy: %w", err)
	}
	if copy == nil {
		return "", nil
	}
	return copy.ID, nil
}

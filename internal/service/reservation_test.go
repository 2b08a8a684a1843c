package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// ============================================================================
// Mock Repositories
// ============================================================================

type mockReservationRepo struct {
	createFunc                    func(ctx context.Context, reservation *model.Reservation) error
	getFunc                       func(ctx context.Context, reservationID string) (*model.Reservation, error)
	getActiveByTitleAndReaderFunc func(ctx context.Context, titleID, readerID string) (*model.Reservation, error)
	getReadyByTitleAndReaderFunc  func(ctx context.Context, titleID, readerID string) (*model.Reservation, error)
	getReadyByCopyFunc            func(ctx context.Context, copyID string) (*model.Reservation, error)
	oldestWaitingFunc             func(ctx context.Context, titleID string) (*model.Reservation, error)
	listByReaderFunc              func(ctx context.Context, readerID string) ([]*model.Reservation, error)
	countWaitingByTitleFunc       func(ctx context.Context, titleID string) (int, error)
	expiredReadyFunc              func(ctx context.Context, asOf time.Time) ([]*model.Reservation, error)
	updateStatusFunc              func(ctx context.Context, reservationID, fromStatus, toStatus string) error
	promoteFunc                   func(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error
	expireAndAdvanceFunc          func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error
}

func (m *mockReservationRepo) Create(ctx context.Context, reservation *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, reservation)
	}
	return nil
}

func (m *mockReservationRepo) Get(ctx context.Context, reservationID string) (*model.Reservation, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, reservationID)
	}
	return nil, nil
}

func (m *mockReservationRepo) GetActiveByTitleAndReader(ctx context.Context, titleID, readerID string) (*model.Reservation, error) {
	if m.getActiveByTitleAndReaderFunc != nil {
		return m.getActiveByTitleAndReaderFunc(ctx, titleID, readerID)
	}
	return nil, nil
}

func (m *mockReservationRepo) GetReadyByTitleAndReader(ctx context.Context, titleID, readerID string) (*model.Reservation, error) {
	if m.getReadyByTitleAndReaderFunc != nil {
		return m.getReadyByTitleAndReaderFunc(ctx, titleID, readerID)
	}
	return nil, nil
}

func (m *mockReservationRepo) GetReadyByCopy(ctx context.Context, copyID string) (*model.Reservation, error) {
	if m.getReadyByCopyFunc != nil {
		return m.getReadyByCopyFunc(ctx, copyID)
	}
	return nil, nil
}

func (m *mockReservationRepo) OldestWaiting(ctx context.Context, titleID string) (*model.Reservation, error) {
	if m.oldestWaitingFunc != nil {
		return m.oldestWaitingFunc(ctx, titleID)
	}
	return nil, nil
}

func (m *mockReservationRepo) ListByReader(ctx context.Context, readerID string) ([]*model.Reservation, error) {
	if m.listByReaderFunc != nil {
		return m.listByReaderFunc(ctx, readerID)
	}
	return nil, nil
}

func (m *mockReservationRepo) CountWaitingByTitle(ctx context.Context, titleID string) (int, error) {
	if m.countWaitingByTitleFunc != nil {
		return m.countWaitingByTitleFunc(ctx, titleID)
	}
	return 0, nil
}

func (m *mockReservationRepo) ExpiredReady(ctx context.Context, asOf time.Time) ([]*model.Reservation, error) {
	if m.expiredReadyFunc != nil {
		return m.expiredReadyFunc(ctx, asOf)
	}
	return nil, nil
}

func (m *mockReservationRepo) UpdateStatus(ctx context.Context, reservationID, fromStatus, toStatus string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, reservationID, fromStatus, toStatus)
	}
	return nil
}

func (m *mockReservationRepo) Promote(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error {
	if m.promoteFunc != nil {
		return m.promoteFunc(ctx, reservationID, copyID, copyFromStatus, expiresOn)
	}
	return nil
}

func (m *mockReservationRepo) ExpireAndAdvance(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
	if m.expireAndAdvanceFunc != nil {
		return m.expireAndAdvanceFunc(ctx, reservationID, copyID, nextReservationID, nextExpiresOn)
	}
	return nil
}

// ============================================================================
// Helper Functions
// ============================================================================

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestReservationService(repo *mockReservationRepo, titleRepo *mockTitleRepo, copyRepo *mockCopyRepo, readerRepo *mockReaderRepo) *ReservationService {
	if repo == nil {
		repo = &mockReservationRepo{}
	}
	if titleRepo == nil {
		titleRepo = &mockTitleRepo{
			getFunc: func(ctx context.Context, titleID string) (*model.Title, error) {
				return &model.Title{ID: titleID}, nil
			},
		}
	}
	if copyRepo == nil {
		copyRepo = &mockCopyRepo{}
	}
	if readerRepo == nil {
		readerRepo = &mockReaderRepo{
			getFunc: func(ctx context.Context, readerID string) (*model.Reader, error) {
				return &model.Reader{ID: readerID, LoanLimit: model.DefaultLoanLimit}, nil
			},
		}
	}
	return NewReservationService(ReservationServiceConfig{
		ReservationRepo: repo,
		TitleRepo:       titleRepo,
		CopyRepo:        copyRepo,
		ReaderRepo:      readerRepo,
		Now:             func() time.Time { return testNow },
	})
}

// ============================================================================
// Create Tests
// ============================================================================

func TestCreateReservation_TitleAvailable_Rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	copyRepo := &mockCopyRepo{
		countByTitleAndStatusFunc: func(ctx context.Context, titleID, status string) (int, error) {
			return 1, nil
		},
	}
	svc := newTestReservationService(nil, nil, copyRepo, nil)

	_, err := svc.Create(ctx, "title:1", "reader:1")
	if !errors.Is(err, ErrTitleCurrentlyAvailable) {
		t.Errorf("expected ErrTitleCurrentlyAvailable, got %v", err)
	}
}

func TestCreateReservation_Duplicate_Rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		getActiveByTitleAndReaderFunc: func(ctx context.Context, titleID, readerID string) (*model.Reservation, error) {
			return &model.Reservation{ID: "reservation:1", Status: model.ReservationStatusWaiting}, nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	_, err := svc.Create(ctx, "title:1", "reader:1")
	if !errors.Is(err, ErrDuplicateReservation) {
		t.Errorf("expected ErrDuplicateReservation, got %v", err)
	}
}

func TestCreateReservation_EntersWaitingLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var created *model.Reservation
	repo := &mockReservationRepo{
		createFunc: func(ctx context.Context, reservation *model.Reservation) error {
			reservation.ID = "reservation:1"
			created = reservation
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	reservation, err := svc.Create(ctx, "title:1", "reader:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reservation.Status != model.ReservationStatusWaiting {
		t.Errorf("expected waiting status, got %s", reservation.Status)
	}
	if created == nil || created.TitleID != "title:1" || created.ReaderID != "reader:1" {
		t.Errorf("unexpected reservation sent to repository: %+v", created)
	}
}

func TestCreateReservation_TitleNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	titleRepo := &mockTitleRepo{}
	svc := newTestReservationService(nil, titleRepo, nil, nil)

	_, err := svc.Create(ctx, "title:missing", "reader:1")
	if !errors.Is(err, ErrTitleNotFound) {
		t.Errorf("expected ErrTitleNotFound, got %v", err)
	}
}

// ============================================================================
// Cancel Tests
// ============================================================================

func TestCancel_Waiting_Succeeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotFrom, gotTo string
	repo := &mockReservationRepo{
		getFunc: func(ctx context.Context, reservationID string) (*model.Reservation, error) {
			return &model.Reservation{
				ID:       reservationID,
				ReaderID: "reader:1",
				Status:   model.ReservationStatusWaiting,
			}, nil
		},
		updateStatusFunc: func(ctx context.Context, reservationID, fromStatus, toStatus string) error {
			gotFrom, gotTo = fromStatus, toStatus
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	if err := svc.Cancel(ctx, "reservation:1", "reader:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFrom != model.ReservationStatusWaiting || gotTo != model.ReservationStatusCancelled {
		t.Errorf("expected waiting->cancelled, got %s->%s", gotFrom, gotTo)
	}
}

func TestCancel_NotHolder_Rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		getFunc: func(ctx context.Context, reservationID string) (*model.Reservation, error) {
			return &model.Reservation{
				ID:       reservationID,
				ReaderID: "reader:1",
				Status:   model.ReservationStatusWaiting,
			}, nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	if err := svc.Cancel(ctx, "reservation:1", "reader:2"); !errors.Is(err, ErrNotReservationHolder) {
		t.Errorf("expected ErrNotReservationHolder, got %v", err)
	}
}

func TestCancel_Ready_HandsCopyOnward(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	copyID := "copy:1"
	next := &model.Reservation{ID: "reservation:next", Status: model.ReservationStatusWaiting}

	var promotedID string
	var promotedFromStatus string
	repo := &mockReservationRepo{
		getFunc: func(ctx context.Context, reservationID string) (*model.Reservation, error) {
			return &model.Reservation{
				ID:       reservationID,
				TitleID:  "title:1",
				ReaderID: "reader:1",
				Status:   model.ReservationStatusReadyForPickup,
				CopyID:   &copyID,
			}, nil
		},
		oldestWaitingFunc: func(ctx context.Context, titleID string) (*model.Reservation, error) {
			return next, nil
		},
		promoteFunc: func(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error {
			promotedID = reservationID
			promotedFromStatus = copyFromStatus
			return nil
		},
	}
	copyRepo := &mockCopyRepo{
		getFunc: func(ctx context.Context, id string) (*model.Copy, error) {
			return &model.Copy{ID: id, TitleID: "title:1", Status: model.CopyStatusAwaitingPickup}, nil
		},
	}
	svc := newTestReservationService(repo, nil, copyRepo, nil)

	if err := svc.Cancel(ctx, "reservation:1", "reader:1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if promotedID != "reservation:next" {
		t.Errorf("expected next reservation promoted, got %q", promotedID)
	}
	if promotedFromStatus != model.CopyStatusAwaitingPickup {
		t.Errorf("expected copy guard on awaiting_pickup, got %q", promotedFromStatus)
	}
}

func TestCancel_AlreadyCancelled_Rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		getFunc: func(ctx context.Context, reservationID string) (*model.Reservation, error) {
			return &model.Reservation{
				ID:       reservationID,
				ReaderID: "reader:1",
				Status:   model.ReservationStatusCancelled,
			}, nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	if err := svc.Cancel(ctx, "reservation:1", "reader:1"); !errors.Is(err, ErrReservationNotActive) {
		t.Errorf("expected ErrReservationNotActive, got %v", err)
	}
}

// ============================================================================
// AdvanceQueue Tests
// ============================================================================

func TestAdvanceQueue_NoWaiter_ShelvesCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotFrom []string
	var gotTo string
	copyRepo := &mockCopyRepo{
		updateStatusFromFunc: func(ctx context.Context, copyID string, from []string, to string) error {
			gotFrom, gotTo = from, to
			return nil
		},
	}
	svc := newTestReservationService(nil, nil, copyRepo, nil)

	copy := &model.Copy{ID: "copy:1", TitleID: "title:1", Status: model.CopyStatusOnLoan}
	if err := svc.AdvanceQueue(ctx, "title:1", copy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotFrom) != 1 || gotFrom[0] != model.CopyStatusOnLoan || gotTo != model.CopyStatusAvailable {
		t.Errorf("expected guarded on_loan->available, got %v -> %s", gotFrom, gotTo)
	}
}

func TestAdvanceQueue_Waiter_PromotedWithPickupWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotExpiry time.Time
	repo := &mockReservationRepo{
		oldestWaitingFunc: func(ctx context.Context, titleID string) (*model.Reservation, error) {
			return &model.Reservation{ID: "reservation:1", Status: model.ReservationStatusWaiting}, nil
		},
		promoteFunc: func(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error {
			gotExpiry = expiresOn
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	copy := &model.Copy{ID: "copy:1", TitleID: "title:1", Status: model.CopyStatusOnLoan}
	if err := svc.AdvanceQueue(ctx, "title:1", copy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := testNow.AddDate(0, 0, model.DefaultPickupWindowDays)
	if !gotExpiry.Equal(want) {
		t.Errorf("expected pickup window until %v, got %v", want, gotExpiry)
	}
}

func TestAdvanceQueue_CandidateVanished_TriesNext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	candidates := []*model.Reservation{
		{ID: "reservation:cancelled", Status: model.ReservationStatusWaiting},
		{ID: "reservation:second", Status: model.ReservationStatusWaiting},
	}
	var promoted []string
	repo := &mockReservationRepo{
		oldestWaitingFunc: func(ctx context.Context, titleID string) (*model.Reservation, error) {
			next := candidates[0]
			candidates = candidates[1:]
			return next, nil
		},
		promoteFunc: func(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error {
			promoted = append(promoted, reservationID)
			if reservationID == "reservation:cancelled" {
				return database.ErrConflict
			}
			return nil
		},
	}
	copyRepo := &mockCopyRepo{
		getFunc: func(ctx context.Context, copyID string) (*model.Copy, error) {
			return &model.Copy{ID: copyID, TitleID: "title:1", Status: model.CopyStatusOnLoan}, nil
		},
	}
	svc := newTestReservationService(repo, nil, copyRepo, nil)

	copy := &model.Copy{ID: "copy:1", TitleID: "title:1", Status: model.CopyStatusOnLoan}
	if err := svc.AdvanceQueue(ctx, "title:1", copy); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(promoted) != 2 || promoted[1] != "reservation:second" {
		t.Errorf("expected second candidate promoted after conflict, got %v", promoted)
	}
}

func TestAdvanceQueue_CopyMovedOn_StopsQuietly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		oldestWaitingFunc: func(ctx context.Context, titleID string) (*model.Reservation, error) {
			return &model.Reservation{ID: "reservation:1", Status: model.ReservationStatusWaiting}, nil
		},
		promoteFunc: func(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error {
			return database.ErrConflict
		},
	}
	copyRepo := &mockCopyRepo{
		getFunc: func(ctx context.Context, copyID string) (*model.Copy, error) {
			// Someone claimed the copy while we were advancing.
			return &model.Copy{ID: copyID, TitleID: "title:1", Status: model.CopyStatusOnLoan}, nil
		},
	}
	svc := newTestReservationService(repo, nil, copyRepo, nil)

	copy := &model.Copy{ID: "copy:1", TitleID: "title:1", Status: model.CopyStatusAvailable}
	if err := svc.AdvanceQueue(ctx, "title:1", copy); err != nil {
		t.Fatalf("expected quiet stop when copy moved, got %v", err)
	}
}

// ============================================================================
// Expire Tests
// ============================================================================

func readyReservation(id, titleID, copyID string, expiresOn time.Time) *model.Reservation {
	r := &model.Reservation{
		ID:        id,
		TitleID:   titleID,
		ReaderID:  "reader:1",
		Status:    model.ReservationStatusReadyForPickup,
		ExpiresOn: &expiresOn,
	}
	if copyID != "" {
		r.CopyID = &copyID
	}
	return r
}

// awaitingPickupCopyRepo serves every copy lookup with an awaiting_pickup
// copy, matching a hold whose earmark is intact.
func awaitingPickupCopyRepo() *mockCopyRepo {
	return &mockCopyRepo{
		getFunc: func(ctx context.Context, copyID string) (*model.Copy, error) {
			return &model.Copy{ID: copyID, TitleID: "title:1", Status: model.CopyStatusAwaitingPickup}, nil
		},
	}
}

func TestExpire_NotReady_NoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			t.Error("expire should not run for a fulfilled reservation")
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	reservation := &model.Reservation{ID: "reservation:1", Status: model.ReservationStatusFulfilled}
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WindowStillOpen_NoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			t.Error("expire should not run inside the pickup window")
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow.AddDate(0, 0, 1))
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_WithWaiter_ReearmarksCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotNext, gotCopy string
	repo := &mockReservationRepo{
		oldestWaitingFunc: func(ctx context.Context, titleID string) (*model.Reservation, error) {
			return &model.Reservation{ID: "reservation:next", Status: model.ReservationStatusWaiting}, nil
		},
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			gotCopy = copyID
			gotNext = nextReservationID
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, awaitingPickupCopyRepo(), nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow.AddDate(0, 0, -1))
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotNext != "reservation:next" || gotCopy != "copy:1" {
		t.Errorf("expected copy:1 re-earmarked to reservation:next, got copy=%q next=%q", gotCopy, gotNext)
	}
}

func TestExpire_NoWaiter_ReleasesCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotNext string
	called := false
	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			called = true
			gotNext = nextReservationID
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, awaitingPickupCopyRepo(), nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow.AddDate(0, 0, -1))
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called || gotNext != "" {
		t.Errorf("expected release with no successor, called=%v next=%q", called, gotNext)
	}
}

func TestExpire_MissingEarmark_FallsBackToLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var gotCopy string
	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			gotCopy = copyID
			return nil
		},
	}
	copyRepo := &mockCopyRepo{
		firstByTitleAndStatusFunc: func(ctx context.Context, titleID, status string) (*model.Copy, error) {
			if status != model.CopyStatusAwaitingPickup {
				t.Errorf("expected awaiting_pickup lookup, got %s", status)
			}
			return &model.Copy{ID: "copy:found", TitleID: titleID, Status: status}, nil
		},
	}
	svc := newTestReservationService(repo, nil, copyRepo, nil)

	reservation := readyReservation("reservation:1", "title:1", "", testNow.AddDate(0, 0, -1))
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCopy != "copy:found" {
		t.Errorf("expected fallback copy to be used, got %q", gotCopy)
	}
}

func TestExpire_NoCopyAnywhere_InconsistentState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var expiredVia string
	repo := &mockReservationRepo{
		updateStatusFunc: func(ctx context.Context, reservationID, fromStatus, toStatus string) error {
			expiredVia = toStatus
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	reservation := readyReservation("reservation:1", "title:1", "", testNow.AddDate(0, 0, -1))
	err := svc.Expire(ctx, reservation, testNow)
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if expiredVia != model.ReservationStatusExpired {
		t.Errorf("expected the hold to be expired anyway, got %q", expiredVia)
	}
}

func TestExpire_FulfilledConcurrently_StopsQuietly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			return database.ErrConflict
		},
		getFunc: func(ctx context.Context, reservationID string) (*model.Reservation, error) {
			return &model.Reservation{ID: reservationID, Status: model.ReservationStatusFulfilled}, nil
		},
	}
	svc := newTestReservationService(repo, nil, awaitingPickupCopyRepo(), nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow.AddDate(0, 0, -1))
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("expected quiet stop after concurrent pickup, got %v", err)
	}
}

func TestExpire_WindowEndsExactlyAtSweepTime_NoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			t.Error("a window ending exactly at the sweep time has not lapsed yet")
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, nil, nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow)
	if err := svc.Expire(ctx, reservation, testNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpire_StaleEarmark_ExpiresHoldAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var expiredVia string
	repo := &mockReservationRepo{
		updateStatusFunc: func(ctx context.Context, reservationID, fromStatus, toStatus string) error {
			expiredVia = toStatus
			return nil
		},
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			t.Error("a hold with no copy behind it has nothing to hand on")
			return nil
		},
	}
	// The earmarked copy went back on loan; no other copy is held either.
	copyRepo := &mockCopyRepo{
		getFunc: func(ctx context.Context, copyID string) (*model.Copy, error) {
			return &model.Copy{ID: copyID, TitleID: "title:1", Status: model.CopyStatusOnLoan}, nil
		},
	}
	svc := newTestReservationService(repo, nil, copyRepo, nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow.AddDate(0, 0, -1))
	err := svc.Expire(ctx, reservation, testNow)
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if expiredVia != model.ReservationStatusExpired {
		t.Errorf("expected the hold to be expired anyway, got %q", expiredVia)
	}
}

func TestExpire_CopyClaimedMidExpiry_StopsAfterOneAttempt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// The copy is still held when the expiry starts but leaves
	// awaiting_pickup before the guarded batch commits, while the
	// reservation itself never moves. Retrying can never win here.
	var copyReads int
	copyRepo := &mockCopyRepo{
		getFunc: func(ctx context.Context, copyID string) (*model.Copy, error) {
			copyReads++
			status := model.CopyStatusAwaitingPickup
			if copyReads > 1 {
				status = model.CopyStatusOnLoan
			}
			return &model.Copy{ID: copyID, TitleID: "title:1", Status: status}, nil
		},
	}

	var attempts int
	var expiredVia string
	repo := &mockReservationRepo{
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			attempts++
			return database.ErrConflict
		},
		getFunc: func(ctx context.Context, reservationID string) (*model.Reservation, error) {
			return readyReservation(reservationID, "title:1", "copy:1", testNow.AddDate(0, 0, -1)), nil
		},
		updateStatusFunc: func(ctx context.Context, reservationID, fromStatus, toStatus string) error {
			expiredVia = toStatus
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, copyRepo, nil)

	reservation := readyReservation("reservation:1", "title:1", "copy:1", testNow.AddDate(0, 0, -1))
	err := svc.Expire(ctx, reservation, testNow)
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single expiry attempt, got %d", attempts)
	}
	if expiredVia != model.ReservationStatusExpired {
		t.Errorf("expected the hold to be expired on its own, got %q", expiredVia)
	}
}

// ============================================================================
// RunExpirySweep Tests
// ============================================================================

func TestRunExpirySweep_EmptyState_NoOp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := newTestReservationService(nil, nil, nil, nil)

	result, err := svc.RunExpirySweep(ctx, testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Errorf("expected empty sweep, got %+v", result)
	}
}

func TestRunExpirySweep_FailureDoesNotAbort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	copyA, copyB := "copy:a", "copy:b"
	lapsed := testNow.AddDate(0, 0, -1)
	repo := &mockReservationRepo{
		expiredReadyFunc: func(ctx context.Context, asOf time.Time) ([]*model.Reservation, error) {
			return []*model.Reservation{
				readyReservation("reservation:bad", "title:1", copyA, lapsed),
				readyReservation("reservation:good", "title:2", copyB, lapsed),
			}, nil
		},
		expireAndAdvanceFunc: func(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
			if reservationID == "reservation:bad" {
				return errors.New("store hiccup")
			}
			return nil
		},
	}
	svc := newTestReservationService(repo, nil, awaitingPickupCopyRepo(), nil)

	result, err := svc.RunExpirySweep(ctx, testNow)
	if err == nil {
		t.Error("expected the per-item failure to be reported")
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Errorf("expected 1 processed / 1 failed, got %+v", result)
	}
}

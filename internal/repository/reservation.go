package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// ReservationRepository handles reservation data access
type ReservationRepository struct {
	db database.Database
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db database.Database) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create places a new waiting reservation
func (r *ReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	query := `
		CREATE reservation CONTENT {
			title_id: type::record($title_id),
			reader_id: type::record($reader_id),
			status: $status,
			copy_id: NONE,
			expires_on: NONE,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	status := reservation.Status
	if status == "" {
		status = model.ReservationStatusWaiting
	}

	vars := map[string]interface{}{
		"title_id":  reservation.TitleID,
		"reader_id": reservation.ReaderID,
		"status":    status,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	reservation.Status = status
	if records, ok := extractQueryResults(result); ok && len(records) > 0 {
		if data, ok := records[0].(map[string]interface{}); ok {
			reservation.ID = convertSurrealID(data["id"])
			if t := getTime(data, "created_on"); t != nil {
				reservation.CreatedOn = *t
			}
			if t := getTime(data, "updated_on"); t != nil {
				reservation.UpdatedOn = *t
			}
		}
	}
	return nil
}

// Get retrieves a reservation by ID
func (r *ReservationRepository) Get(ctx context.Context, reservationID string) (*model.Reservation, error) {
	query := `SELECT * FROM type::record($reservation_id)`
	vars := map[string]interface{}{"reservation_id": reservationID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReservationResult(result)
}

// GetActiveByTitleAndReader retrieves the reader's waiting or
// ready_for_pickup reservation for a title, or nil when there is none.
// A reader holds at most one active reservation per title.
func (r *ReservationRepository) GetActiveByTitleAndReader(ctx context.Context, titleID, readerID string) (*model.Reservation, error) {
	query := `
		SELECT * FROM reservation
		WHERE title_id = type::record($title_id)
		AND reader_id = type::record($reader_id)
		AND status IN [$waiting, $ready]
		LIMIT 1
	`
	vars := map[string]interface{}{
		"title_id":  titleID,
		"reader_id": readerID,
		"waiting":   model.ReservationStatusWaiting,
		"ready":     model.ReservationStatusReadyForPickup,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReservationResult(result)
}

// GetReadyByTitleAndReader retrieves the reader's ready_for_pickup
// reservation for a title, or nil when there is none.
func (r *ReservationRepository) GetReadyByTitleAndReader(ctx context.Context, titleID, readerID string) (*model.Reservation, error) {
	query := `
		SELECT * FROM reservation
		WHERE title_id = type::record($title_id)
		AND reader_id = type::record($reader_id)
		AND status = $status
		LIMIT 1
	`
	vars := map[string]interface{}{
		"title_id":  titleID,
		"reader_id": readerID,
		"status":    model.ReservationStatusReadyForPickup,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReservationResult(result)
}

// GetReadyByCopy retrieves the ready_for_pickup reservation earmarking a
// copy, or nil when no reservation holds it.
func (r *ReservationRepository) GetReadyByCopy(ctx context.Context, copyID string) (*model.Reservation, error) {
	query := `
		SELECT * FROM reservation
		WHERE copy_id = type::record($copy_id)
		AND status = $status
		LIMIT 1
	`
	vars := map[string]interface{}{
		"copy_id": copyID,
		"status":  model.ReservationStatusReadyForPickup,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReservationResult(result)
}

// OldestWaiting retrieves the head of a title's waiting line, or nil when
// the line is empty. FIFO on created_on, ties broken by ID.
func (r *ReservationRepository) OldestWaiting(ctx context.Context, titleID string) (*model.Reservation, error) {
	query := `
		SELECT * FROM reservation
		WHERE title_id = type::record($title_id)
		AND status = $status
		ORDER BY created_on ASC, id ASC
		LIMIT 1
	`
	vars := map[string]interface{}{
		"title_id": titleID,
		"status":   model.ReservationStatusWaiting,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReservationResult(result)
}

// ListByReader retrieves a reader's reservations, newest first
func (r *ReservationRepository) ListByReader(ctx context.Context, readerID string) ([]*model.Reservation, error) {
	query := `
		SELECT * FROM reservation
		WHERE reader_id = type::record($reader_id)
		ORDER BY created_on DESC
	`
	vars := map[string]interface{}{"reader_id": readerID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseReservationsResult(result), nil
}

// CountWaitingByTitle counts reservations in a title's waiting line
func (r *ReservationRepository) CountWaitingByTitle(ctx context.Context, titleID string) (int, error) {
	query := `
		SELECT count() AS count FROM reservation
		WHERE title_id = type::record($title_id)
		AND status = $status
		GROUP ALL
	`
	vars := map[string]interface{}{
		"title_id": titleID,
		"status":   model.ReservationStatusWaiting,
	}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	if data, ok := result.(map[string]interface{}); ok {
		return getInt(data, "count"), nil
	}
	return 0, nil
}

// ExpiredReady retrieves every ready_for_pickup reservation whose pickup
// window ended strictly before asOf. Oldest first, so the sweep releases
// copies in a deterministic order.
func (r *ReservationRepository) ExpiredReady(ctx context.Context, asOf time.Time) ([]*model.Reservation, error) {
	query := `
		SELECT * FROM reservation
		WHERE status = $status
		AND expires_on != NONE
		AND expires_on < $as_of
		ORDER BY expires_on ASC, id ASC
	`
	vars := map[string]interface{}{
		"status": model.ReservationStatusReadyForPickup,
		"as_of":  asOf,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseReservationsResult(result), nil
}

// UpdateStatus moves a reservation from one status to another. The guard
// on the current status means a concurrent transition wins cleanly: the
// loser updates nothing. Leaving ready_for_pickup always clears the
// earmark fields.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, reservationID, fromStatus, toStatus string) error {
	query := `
		UPDATE type::record($reservation_id) SET
			status = $to_status,
			copy_id = NONE,
			expires_on = NONE,
			updated_on = time::now()
		WHERE status = $from_status
	`
	vars := map[string]interface{}{
		"reservation_id": reservationID,
		"from_status":    fromStatus,
		"to_status":      toStatus,
	}

	return r.db.Execute(ctx, query, vars)
}

// Promote moves a waiting reservation to ready_for_pickup with copyID
// earmarked until expiresOn, and parks the copy as awaiting_pickup. The
// copy guard is on copyFromStatus, the status the caller last observed:
// queue advancement runs against copies coming back from a loan, from
// repair or straight off the shelf. Both updates commit together; a
// failed guard rolls the batch back and surfaces database.ErrConflict.
func (r *ReservationRepository) Promote(ctx context.Context, reservationID, copyID, copyFromStatus string, expiresOn time.Time) error {
	batch := database.NewAtomicBatch()

	batch.Add(`
		LET $promoted = (UPDATE type::record($reservation_id) SET
			status = $ready,
			copy_id = type::record($copy_id),
			expires_on = $expires_on,
			updated_on = time::now()
		WHERE status = $waiting
		RETURN AFTER)
	`, map[string]interface{}{
		"reservation_id": reservationID,
		"copy_id":        copyID,
		"expires_on":     expiresOn,
		"ready":          model.ReservationStatusReadyForPickup,
		"waiting":        model.ReservationStatusWaiting,
	})

	batch.Add(`
		IF array::len($promoted) == 0 { THROW "`+guardFailedMessage+`: reservation not waiting" }
	`, nil)

	batch.Add(`
		LET $parked = (UPDATE type::record($copy_id) SET
			status = $awaiting,
			updated_on = time::now()
		WHERE status = $from_status
		RETURN AFTER)
	`, map[string]interface{}{
		"copy_id":     copyID,
		"awaiting":    model.CopyStatusAwaitingPickup,
		"from_status": copyFromStatus,
	})

	batch.Add(`
		IF array::len($parked) == 0 { THROW "`+guardFailedMessage+`: copy not parkable" }
	`, nil)

	if err := batch.Execute(ctx, r.db); err != nil {
		if isGuardFailure(err) {
			return database.ErrConflict
		}
		return err
	}
	return nil
}

// ExpireAndAdvance expires a lapsed ready_for_pickup reservation and hands
// its copy onward in one transaction. When nextReservationID is non-empty
// the copy goes straight to the next reader in line; otherwise it returns
// to the shelf as available. A failed guard rolls everything back and
// surfaces database.ErrConflict; the caller re-reads and decides.
func (r *ReservationRepository) ExpireAndAdvance(ctx context.Context, reservationID, copyID, nextReservationID string, nextExpiresOn time.Time) error {
	batch := database.NewAtomicBatch()

	batch.Add(`
		LET $lapsed = (UPDATE type::record($reservation_id) SET
			status = $expired,
			copy_id = NONE,
			expires_on = NONE,
			updated_on = time::now()
		WHERE status = $ready
		RETURN AFTER)
	`, map[string]interface{}{
		"reservation_id": reservationID,
		"expired":        model.ReservationStatusExpired,
		"ready":          model.ReservationStatusReadyForPickup,
	})

	batch.Add(`
		IF array::len($lapsed) == 0 { THROW "`+guardFailedMessage+`: reservation no longer ready" }
	`, nil)

	if nextReservationID != "" {
		// The copy stays awaiting_pickup; only its holder changes.
		batch.Add(`
			LET $promoted = (UPDATE type::record($reservation_id) SET
				status = $ready,
				copy_id = type::record($copy_id),
				expires_on = $expires_on,
				updated_on = time::now()
			WHERE status = $waiting
			RETURN AFTER)
		`, map[string]interface{}{
			"reservation_id": nextReservationID,
			"copy_id":        copyID,
			"expires_on":     nextExpiresOn,
			"ready":          model.ReservationStatusReadyForPickup,
			"waiting":        model.ReservationStatusWaiting,
		})

		batch.Add(`
			IF array::len($promoted) == 0 { THROW "`+guardFailedMessage+`: reservation not waiting" }
		`, nil)
	} else {
		batch.Add(`
			LET $released = (UPDATE type::record($copy_id) SET
				status = $available,
				updated_on = time::now()
			WHERE status = $awaiting
			RETURN AFTER)
		`, map[string]interface{}{
			"copy_id":   copyID,
			"available": model.CopyStatusAvailable,
			"awaiting":  model.CopyStatusAwaitingPickup,
		})

		batch.Add(`
			IF array::len($released) == 0 { THROW "`+guardFailedMessage+`: copy not releasable" }
		`, nil)
	}

	if err := batch.Execute(ctx, r.db); err != nil {
		if isGuardFailure(err) {
			return database.ErrConflict
		}
		return err
	}
	return nil
}

func parseReservationResult(result interface{}) (*model.Reservation, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	reservation := &model.Reservation{
		ID:        convertSurrealID(data["id"]),
		TitleID:   convertSurrealID(data["title_id"]),
		ReaderID:  convertSurrealID(data["reader_id"]),
		Status:    getString(data, "status"),
		ExpiresOn: getTime(data, "expires_on"),
	}

	if data["copy_id"] != nil {
		if copyID := convertSurrealID(data["copy_id"]); copyID != "" {
			reservation.CopyID = &copyID
		}
	}

	if t := getTime(data, "created_on"); t != nil {
		reservation.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		reservation.UpdatedOn = *t
	}

	return reservation, nil
}

func parseReservationsResult(result []interface{}) []*model.Reservation {
	reservations := make([]*model.Reservation, 0)

	for _, res := range result {
		if resp, ok := res.(map[string]interface{}); ok {
			if resultData, ok := resp["result"].([]interface{}); ok {
				for _, item := range resultData {
					if reservation, err := parseReservationResult(item); err == nil {
						reservations = append(reservations, reservation)
					}
				}
				continue
			}
		}

		if reservation, err := parseReservationResult(res); err == nil {
			reservations = append(reservations, reservation)
		}
	}

	return reservations
}

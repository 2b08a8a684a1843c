package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// LoanRepository handles loan data access
type LoanRepository struct {
	db database.Database
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db database.Database) *LoanRepository {
	return &LoanRepository{db: db}
}

// CreateWithClaim creates the loan and claims its copy in one transaction.
// The copy claim is guarded on the lendable statuses and throws when it
// matches nothing, rolling the whole batch back, so two checkouts racing
// for the same copy cannot both succeed; the loser gets
// database.ErrConflict. When reservationID is non-empty the reader's ready
// reservation is marked fulfilled in the same transaction.
//
// The loan ID is generated here rather than read back from the batch, so
// the caller has it regardless of how the driver reports CREATE results
// inside a transaction.
func (r *LoanRepository) CreateWithClaim(ctx context.Context, loan *model.Loan, reservationID string) error {
	loanKey := strings.ReplaceAll(uuid.NewString(), "-", "")
	loan.ID = "loan:" + loanKey

	batch := database.NewAtomicBatch()

	batch.Add(`
		LET $claimed = (UPDATE type::record($copy_id) SET
			status = $on_loan,
			updated_on = time::now()
		WHERE status IN [$available, $awaiting]
		RETURN AFTER)
	`, map[string]interface{}{
		"copy_id":   loan.CopyID,
		"on_loan":   model.CopyStatusOnLoan,
		"available": model.CopyStatusAvailable,
		"awaiting":  model.CopyStatusAwaitingPickup,
	})

	batch.Add(`
		IF array::len($claimed) == 0 { THROW "`+guardFailedMessage+`: copy not claimable" }
	`, nil)

	batch.Add(`
		CREATE type::thing('loan', $loan_key) CONTENT {
			copy_id: type::record($copy_id),
			reader_id: type::record($reader_id),
			loan_date: $loan_date,
			due_date: $due_date,
			return_date: NONE,
			fee_cents: 0,
			notes: $notes,
			created_on: time::now(),
			updated_on: time::now()
		}
	`, map[string]interface{}{
		"loan_key":  loanKey,
		"copy_id":   loan.CopyID,
		"reader_id": loan.ReaderID,
		"loan_date": loan.LoanDate,
		"due_date":  loan.DueDate,
		"notes":     loan.Notes,
	})

	if reservationID != "" {
		batch.Add(`
			LET $fulfilled = (UPDATE type::record($reservation_id) SET
				status = $to_status,
				copy_id = NONE,
				expires_on = NONE,
				updated_on = time::now()
			WHERE status = $ready
			RETURN AFTER)
		`, map[string]interface{}{
			"reservation_id": reservationID,
			"to_status":      model.ReservationStatusFulfilled,
			"ready":          model.ReservationStatusReadyForPickup,
		})

		batch.Add(`
			IF array::len($fulfilled) == 0 { THROW "`+guardFailedMessage+`: reservation no longer ready" }
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

// Get retrieves a loan by ID
func (r *LoanRepository) Get(ctx context.Context, loanID string) (*model.Loan, error) {
	query := `SELECT * FROM type::record($loan_id)`
	vars := map[string]interface{}{"loan_id": loanID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseLoanResult(result)
}

// GetOpenByCopy retrieves the open loan on a copy, or nil when the copy is
// not out. At most one loan per copy is ever open.
func (r *LoanRepository) GetOpenByCopy(ctx context.Context, copyID string) (*model.Loan, error) {
	query := `
		SELECT * FROM loan
		WHERE copy_id = type::record($copy_id)
		AND return_date = NONE
		LIMIT 1
	`
	vars := map[string]interface{}{"copy_id": copyID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseLoanResult(result)
}

// CountOpenByReader counts a reader's open loans
func (r *LoanRepository) CountOpenByReader(ctx context.Context, readerID string) (int, error) {
	query := `
		SELECT count() AS count FROM loan
		WHERE reader_id = type::record($reader_id)
		AND return_date = NONE
		GROUP ALL
	`
	vars := map[string]interface{}{"reader_id": readerID}

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

// ListByReader retrieves a reader's loans, newest first
func (r *LoanRepository) ListByReader(ctx context.Context, readerID string) ([]*model.Loan, error) {
	query := `
		SELECT * FROM loan
		WHERE reader_id = type::record($reader_id)
		ORDER BY loan_date DESC
	`
	vars := map[string]interface{}{"reader_id": readerID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseLoansResult(result), nil
}

// Close records the return of a loan. The guard on return_date makes the
// close idempotent at the storage layer: a second close updates nothing.
func (r *LoanRepository) Close(ctx context.Context, loanID string, returnDate time.Time, feeCents int64) error {
	query := `
		UPDATE type::record($loan_id) SET
			return_date = $return_date,
			fee_cents = $fee_cents,
			updated_on = time::now()
		WHERE return_date = NONE
	`
	vars := map[string]interface{}{
		"loan_id":     loanID,
		"return_date": returnDate,
		"fee_cents":   feeCents,
	}

	return r.db.Execute(ctx, query, vars)
}

// ReopenWithReclaim undoes a mistaken return: the loan opens again with
// its fee cleared and the copy goes back out on loan, in one transaction.
// When demoteReservationID is non-empty, the reservation that was promoted
// onto the returned copy is pushed back to waiting so its holder keeps
// their place in line. Any guard failure rolls the batch back and
// surfaces database.ErrConflict.
func (r *LoanRepository) ReopenWithReclaim(ctx context.Context, loanID, copyID, demoteReservationID string) error {
	batch := database.NewAtomicBatch()

	batch.Add(`
		LET $reopened = (UPDATE type::record($loan_id) SET
			return_date = NONE,
			fee_cents = 0,
			updated_on = time::now()
		WHERE return_date != NONE
		RETURN AFTER)
	`, map[string]interface{}{
		"loan_id": loanID,
	})

	batch.Add(`
		IF array::len($reopened) == 0 { THROW "`+guardFailedMessage+`: loan not reopenable" }
	`, nil)

	batch.Add(`
		LET $reclaimed = (UPDATE type::record($copy_id) SET
			status = $on_loan,
			updated_on = time::now()
		WHERE status IN [$available, $awaiting]
		RETURN AFTER)
	`, map[string]interface{}{
		"copy_id":   copyID,
		"on_loan":   model.CopyStatusOnLoan,
		"available": model.CopyStatusAvailable,
		"awaiting":  model.CopyStatusAwaitingPickup,
	})

	batch.Add(`
		IF array::len($reclaimed) == 0 { THROW "`+guardFailedMessage+`: copy not reclaimable" }
	`, nil)

	if demoteReservationID != "" {
		batch.Add(`
			LET $demoted = (UPDATE type::record($reservation_id) SET
				status = $waiting,
				copy_id = NONE,
				expires_on = NONE,
				updated_on = time::now()
			WHERE status = $ready
			RETURN AFTER)
		`, map[string]interface{}{
			"reservation_id": demoteReservationID,
			"waiting":        model.ReservationStatusWaiting,
			"ready":          model.ReservationStatusReadyForPickup,
		})

		batch.Add(`
			IF array::len($demoted) == 0 { THROW "`+guardFailedMessage+`: reservation no longer ready" }
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

// DueWithin retrieves open loans due between from and to inclusive, with
// reader and title details pulled through the record links.
func (r *LoanRepository) DueWithin(ctx context.Context, from, to time.Time) ([]*model.DueSoonLoan, error) {
	query := `
		SELECT
			id,
			reader_id,
			reader_id.name AS reader_name,
			reader_id.email AS reader_email,
			copy_id.title_id AS title_id,
			copy_id.title_id.title AS title_name,
			due_date
		FROM loan
		WHERE return_date = NONE
		AND due_date >= $from
		AND due_date <= $to
		ORDER BY due_date ASC
	`
	vars := map[string]interface{}{"from": from, "to": to}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := make([]*model.DueSoonLoan, 0)
	for _, item := range flattenQueryRows(result) {
		row := &model.DueSoonLoan{
			LoanID:      convertSurrealID(item["id"]),
			ReaderID:    convertSurrealID(item["reader_id"]),
			ReaderName:  getString(item, "reader_name"),
			ReaderEmail: getString(item, "reader_email"),
			TitleID:     convertSurrealID(item["title_id"]),
			TitleName:   getString(item, "title_name"),
		}
		if t := getTime(item, "due_date"); t != nil {
			row.DueDate = *t
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Overdue retrieves open loans whose due date lies strictly before asOf,
// most overdue first. Days late and the projected fee are computed by the
// caller from policy, not here.
func (r *LoanRepository) Overdue(ctx context.Context, asOf time.Time) ([]*model.OverdueLoan, error) {
	query := `
		SELECT
			id,
			reader_id,
			reader_id.name AS reader_name,
			copy_id.title_id AS title_id,
			copy_id.title_id.title AS title_name,
			due_date
		FROM loan
		WHERE return_date = NONE
		AND due_date < $as_of
		ORDER BY due_date ASC
	`
	vars := map[string]interface{}{"as_of": asOf}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := make([]*model.OverdueLoan, 0)
	for _, item := range flattenQueryRows(result) {
		row := &model.OverdueLoan{
			LoanID:     convertSurrealID(item["id"]),
			ReaderID:   convertSurrealID(item["reader_id"]),
			ReaderName: getString(item, "reader_name"),
			TitleID:    convertSurrealID(item["title_id"]),
			TitleName:  getString(item, "title_name"),
		}
		if t := getTime(item, "due_date"); t != nil {
			row.DueDate = *t
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EarliestDueByTitle retrieves the soonest due date among open loans on a
// title's copies, or nil when none are out. Feeds the expected-return
// annotation on catalog search results.
func (r *LoanRepository) EarliestDueByTitle(ctx context.Context, titleID string) (*time.Time, error) {
	query := `
		SELECT due_date FROM loan
		WHERE return_date = NONE
		AND copy_id.title_id = type::record($title_id)
		ORDER BY due_date ASC
		LIMIT 1
	`
	vars := map[string]interface{}{"title_id": titleID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if data, ok := result.(map[string]interface{}); ok {
		return getTime(data, "due_date"), nil
	}
	return nil, nil
}

// CountOpen counts all open loans
func (r *LoanRepository) CountOpen(ctx context.Context) (int, error) {
	query := `
		SELECT count() AS count FROM loan
		WHERE return_date = NONE
		GROUP ALL
	`

	result, err := r.db.QueryOne(ctx, query, nil)
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

// CountOverdue counts open loans past due as of asOf
func (r *LoanRepository) CountOverdue(ctx context.Context, asOf time.Time) (int, error) {
	query := `
		SELECT count() AS count FROM loan
		WHERE return_date = NONE
		AND due_date < $as_of
		GROUP ALL
	`
	vars := map[string]interface{}{"as_of": asOf}

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

// MostBorrowed retrieves the most-loaned titles of all time
func (r *LoanRepository) MostBorrowed(ctx context.Context, limit int) ([]*model.TitleLoanCount, error) {
	query := `
		SELECT
			copy_id.title_id AS title_id,
			copy_id.title_id.title AS title_name,
			count() AS loan_count
		FROM loan
		GROUP BY title_id, title_name
		ORDER BY loan_count DESC
		LIMIT $limit
	`
	vars := map[string]interface{}{"limit": limit}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := make([]*model.TitleLoanCount, 0)
	for _, item := range flattenQueryRows(result) {
		rows = append(rows, &model.TitleLoanCount{
			TitleID:   convertSurrealID(item["title_id"]),
			TitleName: getString(item, "title_name"),
			LoanCount: getInt(item, "loan_count"),
		})
	}
	return rows, nil
}

// MonthlyTrends retrieves loan counts bucketed by calendar month and
// title category for loans issued on or after since.
func (r *LoanRepository) MonthlyTrends(ctx context.Context, since time.Time) ([]*model.MonthlyLoanTrend, error) {
	query := `
		SELECT
			time::format(loan_date, '%Y-%m') AS month,
			copy_id.title_id.category AS category,
			count() AS loan_count
		FROM loan
		WHERE loan_date >= $since
		GROUP BY month, category
		ORDER BY month ASC, category ASC
	`
	vars := map[string]interface{}{"since": since}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	rows := make([]*model.MonthlyLoanTrend, 0)
	for _, item := range flattenQueryRows(result) {
		rows = append(rows, &model.MonthlyLoanTrend{
			Month:     getString(item, "month"),
			Category:  getString(item, "category"),
			LoanCount: getInt(item, "loan_count"),
		})
	}
	return rows, nil
}

func parseLoanResult(result interface{}) (*model.Loan, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	loan := &model.Loan{
		ID:         convertSurrealID(data["id"]),
		CopyID:     convertSurrealID(data["copy_id"]),
		ReaderID:   convertSurrealID(data["reader_id"]),
		ReturnDate: getTime(data, "return_date"),
		FeeCents:   getInt64(data, "fee_cents"),
		Notes:      getStringPtr(data, "notes"),
	}

	if t := getTime(data, "loan_date"); t != nil {
		loan.LoanDate = *t
	}
	if t := getTime(data, "due_date"); t != nil {
		loan.DueDate = *t
	}
	if t := getTime(data, "created_on"); t != nil {
		loan.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		loan.UpdatedOn = *t
	}

	return loan, nil
}

func parseLoansResult(result []interface{}) []*model.Loan {
	loans := make([]*model.Loan, 0)

	for _, res := range result {
		if resp, ok := res.(map[string]interface{}); ok {
			if resultData, ok := resp["result"].([]interface{}); ok {
				for _, item := range resultData {
					if loan, err := parseLoanResult(item); err == nil {
						loans = append(loans, loan)
					}
				}
				continue
			}
		}

		if loan, err := parseLoanResult(res); err == nil {
			loans = append(loans, loan)
		}
	}

	return loans
}

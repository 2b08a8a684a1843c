package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// ReaderRepository handles reader data access
type ReaderRepository struct {
	db database.Database
}

// NewReaderRepository creates a new reader repository
func NewReaderRepository(db database.Database) *ReaderRepository {
	return &ReaderRepository{db: db}
}

// Create registers a new reader
func (r *ReaderRepository) Create(ctx context.Context, reader *model.Reader) error {
	query := `
		CREATE reader CONTENT {
			name: $name,
			email: $email,
			card_number: $card_number,
			loan_limit: $loan_limit,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	limit := reader.LoanLimit
	if limit == 0 {
		limit = model.DefaultLoanLimit
	}

	vars := map[string]interface{}{
		"name":        reader.Name,
		"email":       reader.Email,
		"card_number": reader.CardNumber,
		"loan_limit":  limit,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: email %s", database.ErrDuplicate, reader.Email)
		}
		return err
	}

	reader.LoanLimit = limit
	if records, ok := extractQueryResults(result); ok && len(records) > 0 {
		if data, ok := records[0].(map[string]interface{}); ok {
			reader.ID = convertSurrealID(data["id"])
			if t := getTime(data, "created_on"); t != nil {
				reader.CreatedOn = *t
			}
			if t := getTime(data, "updated_on"); t != nil {
				reader.UpdatedOn = *t
			}
		}
	}
	return nil
}

// Get retrieves a reader by ID
func (r *ReaderRepository) Get(ctx context.Context, readerID string) (*model.Reader, error) {
	query := `SELECT * FROM type::record($reader_id)`
	vars := map[string]interface{}{"reader_id": readerID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReaderResult(result)
}

// GetByEmail retrieves a reader by email
func (r *ReaderRepository) GetByEmail(ctx context.Context, email string) (*model.Reader, error) {
	query := `SELECT * FROM reader WHERE email = $email LIMIT 1`
	vars := map[string]interface{}{"email": email}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseReaderResult(result)
}

// UpdateLoanLimit sets a reader's loan limit
func (r *ReaderRepository) UpdateLoanLimit(ctx context.Context, readerID string, limit int) error {
	query := `
		UPDATE type::record($reader_id) SET
			loan_limit = $loan_limit,
			updated_on = time::now()
	`
	vars := map[string]interface{}{"reader_id": readerID, "loan_limit": limit}

	return r.db.Execute(ctx, query, vars)
}

// Count returns the number of registered readers
func (r *ReaderRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT count() AS count FROM reader GROUP ALL`

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

func parseReaderResult(result interface{}) (*model.Reader, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	reader := &model.Reader{
		ID:         convertSurrealID(data["id"]),
		Name:       getString(data, "name"),
		Email:      getString(data, "email"),
		CardNumber: getString(data, "card_number"),
		LoanLimit:  getInt(data, "loan_limit"),
	}

	if t := getTime(data, "created_on"); t != nil {
		reader.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		reader.UpdatedOn = *t
	}

	return reader, nil
}

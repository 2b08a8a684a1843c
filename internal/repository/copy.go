package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// CopyRepository handles physical copy data access
type CopyRepository struct {
	db database.Database
}

// NewCopyRepository creates a new copy repository
func NewCopyRepository(db database.Database) *CopyRepository {
	return &CopyRepository{db: db}
}

// Create registers a new physical copy. New copies start out available.
func (r *CopyRepository) Create(ctx context.Context, copy *model.Copy) error {
	query := `
		CREATE copy CONTENT {
			title_id: type::record($title_id),
			inventory_number: $inventory_number,
			status: $status,
			created_on: time::now(),
			updated_on: time::now()
		}
	`

	status := copy.Status
	if status == "" {
		status = model.CopyStatusAvailable
	}

	vars := map[string]interface{}{
		"title_id":         copy.TitleID,
		"inventory_number": copy.InventoryNumber,
		"status":           status,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: inventory number %s", database.ErrDuplicate, copy.InventoryNumber)
		}
		return err
	}

	copy.Status = status
	if records, ok := extractQueryResults(result); ok && len(records) > 0 {
		if data, ok := records[0].(map[string]interface{}); ok {
			copy.ID = convertSurrealID(data["id"])
			if t := getTime(data, "created_on"); t != nil {
				copy.CreatedOn = *t
			}
			if t := getTime(data, "updated_on"); t != nil {
				copy.UpdatedOn = *t
			}
		}
	}
	return nil
}

// Get retrieves a copy by ID
func (r *CopyRepository) Get(ctx context.Context, copyID string) (*model.Copy, error) {
	query := `SELECT * FROM type::record($copy_id)`
	vars := map[string]interface{}{"copy_id": copyID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseCopyResult(result)
}

// ListByTitle retrieves all copies of a title
func (r *CopyRepository) ListByTitle(ctx context.Context, titleID string) ([]*model.Copy, error) {
	query := `
		SELECT * FROM copy
		WHERE title_id = type::record($title_id)
		ORDER BY inventory_number ASC
	`
	vars := map[string]interface{}{"title_id": titleID}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseCopiesResult(result), nil
}

// FirstByTitleAndStatus retrieves the first copy of a title in the given
// status, or nil when there is none. Ordered by ID for determinism.
func (r *CopyRepository) FirstByTitleAndStatus(ctx context.Context, titleID, status string) (*model.Copy, error) {
	query := `
		SELECT * FROM copy
		WHERE title_id = type::record($title_id)
		AND status = $status
		ORDER BY id ASC
		LIMIT 1
	`
	vars := map[string]interface{}{"title_id": titleID, "status": status}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseCopyResult(result)
}

// CountByTitleAndStatus counts copies of a title in the given status
func (r *CopyRepository) CountByTitleAndStatus(ctx context.Context, titleID, status string) (int, error) {
	query := `
		SELECT count() AS count FROM copy
		WHERE title_id = type::record($title_id)
		AND status = $status
		GROUP ALL
	`
	vars := map[string]interface{}{"title_id": titleID, "status": status}

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

// UpdateStatusFrom moves a copy to a new status, guarded on the statuses
// the caller last observed. A copy no longer in any of from is left
// untouched. Multi-record transitions belong to the atomic batches in the
// loan and reservation repositories; this path serves the single-record
// catalog administration moves and queue release.
func (r *CopyRepository) UpdateStatusFrom(ctx context.Context, copyID string, from []string, to string) error {
	query := `
		UPDATE type::record($copy_id) SET
			status = $to_status,
			updated_on = time::now()
		WHERE status IN $from_statuses
	`
	vars := map[string]interface{}{
		"copy_id":       copyID,
		"to_status":     to,
		"from_statuses": from,
	}

	return r.db.Execute(ctx, query, vars)
}

// Count returns the number of copies registered
func (r *CopyRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT count() AS count FROM copy GROUP ALL`

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

func parseCopyResult(result interface{}) (*model.Copy, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	copy := &model.Copy{
		ID:              convertSurrealID(data["id"]),
		TitleID:         convertSurrealID(data["title_id"]),
		InventoryNumber: getString(data, "inventory_number"),
		Status:          getString(data, "status"),
	}

	if t := getTime(data, "created_on"); t != nil {
		copy.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		copy.UpdatedOn = *t
	}

	return copy, nil
}

func parseCopiesResult(result []interface{}) []*model.Copy {
	copies := make([]*model.Copy, 0)

	for _, res := range result {
		if resp, ok := res.(map[string]interface{}); ok {
			if resultData, ok := resp["result"].([]interface{}); ok {
				for _, item := range resultData {
					if c, err := parseCopyResult(item); err == nil {
						copies = append(copies, c)
					}
				}
				continue
			}
		}

		if c, err := parseCopyResult(res); err == nil {
			copies = append(copies, c)
		}
	}

	return copies
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfmark/circulation/internal/database"
	"github.com/shelfmark/circulation/internal/model"
)

// TitleRepository handles catalog title data access
type TitleRepository struct {
	db database.Database
}

// NewTitleRepository creates a new title repository
func NewTitleRepository(db database.Database) *TitleRepository {
	return &TitleRepository{db: db}
}

// Create creates a new catalog title
func (r *TitleRepository) Create(ctx context.Context, title *model.Title) error {
	query := `
		CREATE title CONTENT {
			title: $title,
			author: $author,
			isbn: $isbn,
			publisher: $publisher,
			year: $year,
			category: $category,
			pages: $pages,
			shelf_location: $shelf_location,
			created_on: time::now(),
			updated_on: time::now()
		}
	`
	vars := map[string]interface{}{
		"title":          title.Title,
		"author":         title.Author,
		"isbn":           title.ISBN,
		"publisher":      title.Publisher,
		"year":           title.Year,
		"category":       title.Category,
		"pages":          title.Pages,
		"shelf_location": title.ShelfLocation,
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: isbn %s", database.ErrDuplicate, title.ISBN)
		}
		return err
	}

	if records, ok := extractQueryResults(result); ok && len(records) > 0 {
		if data, ok := records[0].(map[string]interface{}); ok {
			title.ID = convertSurrealID(data["id"])
			if t := getTime(data, "created_on"); t != nil {
				title.CreatedOn = *t
			}
			if t := getTime(data, "updated_on"); t != nil {
				title.UpdatedOn = *t
			}
		}
	}
	return nil
}

// Get retrieves a title by ID
func (r *TitleRepository) Get(ctx context.Context, titleID string) (*model.Title, error) {
	query := `SELECT * FROM type::record($title_id)`
	vars := map[string]interface{}{"title_id": titleID}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseTitleResult(result)
}

// GetByISBN retrieves a title by its ISBN
func (r *TitleRepository) GetByISBN(ctx context.Context, isbn string) (*model.Title, error) {
	query := `SELECT * FROM title WHERE isbn = $isbn LIMIT 1`
	vars := map[string]interface{}{"isbn": isbn}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return parseTitleResult(result)
}

// Search retrieves titles matching the query string on title, author or ISBN
func (r *TitleRepository) Search(ctx context.Context, q string, limit int) ([]*model.Title, error) {
	query := `
		SELECT * FROM title
		WHERE string::lowercase(title) CONTAINS string::lowercase($q)
		OR string::lowercase(author) CONTAINS string::lowercase($q)
		OR isbn CONTAINS $q
		ORDER BY title ASC, author ASC
		LIMIT $limit
	`
	vars := map[string]interface{}{"q": q, "limit": limit}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	return parseTitlesResult(result), nil
}

// Count returns the number of titles in the catalog
func (r *TitleRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT count() AS count FROM title GROUP ALL`

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

func parseTitleResult(result interface{}) (*model.Title, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}

	title := &model.Title{
		ID:            convertSurrealID(data["id"]),
		Title:         getString(data, "title"),
		Author:        getString(data, "author"),
		ISBN:          getString(data, "isbn"),
		Publisher:     getStringPtr(data, "publisher"),
		Year:          getIntPtr(data, "year"),
		Category:      getStringPtr(data, "category"),
		Pages:         getIntPtr(data, "pages"),
		ShelfLocation: getStringPtr(data, "shelf_location"),
	}

	if t := getTime(data, "created_on"); t != nil {
		title.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		title.UpdatedOn = *t
	}

	return title, nil
}

func parseTitlesResult(result []interface{}) []*model.Title {
	titles := make([]*model.Title, 0)

	for _, res := range result {
		if resp, ok := res.(map[string]interface{}); ok {
			if resultData, ok := resp["result"].([]interface{}); ok {
				for _, item := range resultData {
					if title, err := parseTitleResult(item); err == nil {
						titles = append(titles, title)
					}
				}
				continue
			}
		}

		if title, err := parseTitleResult(res); err == nil {
			titles = append(titles, title)
		}
	}

	return titles
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CrawlLogRepository handles the append-only crawl log.
type CrawlLogRepository struct {
	db *sqlx.DB
}

// NewCrawlLogRepository creates a new crawl log repository.
func NewCrawlLogRepository(db *sqlx.DB) *CrawlLogRepository {
	return &CrawlLogRepository{db: db}
}

// Create appends an entry. The ID and ScrapedAt fields are filled in.
func (r *CrawlLogRepository) Create(ctx context.Context, e *models.CrawlLogEntry) error {
	if e.Page != nil && e.CategoryID != nil {
		return fmt.Errorf("crawl log entry cannot reference both page %d and category %s", *e.Page, *e.CategoryID)
	}

	e.ID = uuid.New().String()

	query := `
		INSERT INTO crawl_logs (id, number_of_books, page, category_id)
		VALUES ($1, $2, $3, $4)
		RETURNING scraped_at
	`
	if err := r.db.QueryRowxContext(ctx, query, e.ID, e.BooksAdded, e.Page, e.CategoryID).Scan(&e.ScrapedAt); err != nil {
		return fmt.Errorf("failed to create crawl log entry: %w", translateError(err))
	}
	return nil
}

// LastPage returns the greatest general-catalog page recorded in the log.
// The boolean is false when no general page has been crawled yet.
func (r *CrawlLogRepository) LastPage(ctx context.Context) (int, bool, error) {
	var last sql.NullInt64
	query := `SELECT MAX(page) FROM crawl_logs WHERE category_id IS NULL AND page IS NOT NULL`
	if err := r.db.GetContext(ctx, &last, query); err != nil {
		return 0, false, fmt.Errorf("failed to read last crawled page: %w", err)
	}
	if !last.Valid {
		return 0, false, nil
	}
	return int(last.Int64), true, nil
}

// PageLogged reports whether a general-catalog crawl of page has been recorded.
func (r *CrawlLogRepository) PageLogged(ctx context.Context, page int) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM crawl_logs WHERE category_id IS NULL AND page = $1)`
	if err := r.db.GetContext(ctx, &exists, query, page); err != nil {
		return false, fmt.Errorf("failed to check crawl log for page %d: %w", page, err)
	}
	return exists, nil
}

// List returns log entries newest first.
func (r *CrawlLogRepository) List(ctx context.Context) ([]*models.CrawlLogEntry, error) {
	query := `
		SELECT l.id, l.number_of_books, l.page, l.category_id, c.category_name, l.scraped_at
		FROM crawl_logs l
		LEFT JOIN categories c ON c.category_id = l.category_id
		ORDER BY l.scraped_at DESC
	`
	var entries []*models.CrawlLogEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to list crawl log: %w", err)
	}
	if entries == nil {
		entries = []*models.CrawlLogEntry{}
	}
	return entries, nil
}

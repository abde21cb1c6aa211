package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/jmoiron/sqlx"
)

const categorySelectColumns = `category_id, category_name, category_url, refreshed_at, created_at`

// CategoryRepository handles database operations for categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a category and fails with ErrDuplicate if the id or name is taken.
func (r *CategoryRepository) Create(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (category_id, category_name, category_url)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, c.ID, c.Name, c.URL).Scan(&c.CreatedAt); err != nil {
		return fmt.Errorf("failed to create category %s: %w", c.ID, translateError(err))
	}
	return nil
}

// CreateIfAbsent inserts a category unless one with the same id exists.
// It reports whether a row was inserted.
func (r *CategoryRepository) CreateIfAbsent(ctx context.Context, c *models.Category) (bool, error) {
	query := `
		INSERT INTO categories (category_id, category_name, category_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (category_id) DO NOTHING
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query, c.ID, c.Name, c.URL).Scan(&c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert category %s: %w", c.ID, translateError(err))
	}
	return true, nil
}

// FindByID returns the category with the given id or ErrNotFound.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT ` + categorySelectColumns + ` FROM categories WHERE category_id = $1`
	return r.getOne(ctx, query, id)
}

// FindByName returns the category with the given lower-cased name or ErrNotFound.
func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	query := `SELECT ` + categorySelectColumns + ` FROM categories WHERE category_name = $1`
	return r.getOne(ctx, query, name)
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT ` + categorySelectColumns + ` FROM categories ORDER BY category_name ASC`

	var categories []*models.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	return categories, nil
}

// Update applies the non-nil fields of u.
func (r *CategoryRepository) Update(ctx context.Context, id string, u models.CategoryUpdate) (*models.Category, error) {
	query := `
		UPDATE categories
		SET category_name = COALESCE($2, category_name),
			category_url = COALESCE($3, category_url)
		WHERE category_id = $1
		RETURNING ` + categorySelectColumns
	return r.getOne(ctx, query, id, u.Name, u.URL)
}

// MarkRefreshed sets the refresh timestamp after a completed category crawl.
func (r *CategoryRepository) MarkRefreshed(ctx context.Context, id string, at time.Time) (*models.Category, error) {
	query := `UPDATE categories SET refreshed_at = $2 WHERE category_id = $1 RETURNING ` + categorySelectColumns
	return r.getOne(ctx, query, id, at)
}

// Delete removes a category. Categories that still own books cannot be deleted.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE category_id = $1`, id)
	return requireAffected("category", id, result, err)
}

func (r *CategoryRepository) getOne(ctx context.Context, query string, args ...any) (*models.Category, error) {
	var category models.Category
	if err := r.db.GetContext(ctx, &category, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query category: %w", translateError(err))
	}
	return &category, nil
}

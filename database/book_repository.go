package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/jmoiron/sqlx"
)

const bookSelectColumns = `b.book_id, b.title, b.price, b.rating, b.img, b.stock, b.stock_quantity,
	b.category_id, c.category_name, b.created_at`

const bookFromClause = ` FROM books b LEFT JOIN categories c ON c.category_id = b.category_id`

// BookRepository handles database operations for books.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// InsertIfAbsent inserts b unless a book with the same id exists and reports
// whether a row was inserted. A missing category yields ErrForeignKey.
func (r *BookRepository) InsertIfAbsent(ctx context.Context, b *models.Book) (bool, error) {
	query := `
		INSERT INTO books (book_id, title, price, rating, img, stock, stock_quantity, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (book_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.Title, b.Price, b.Rating, b.ImageURL, b.InStock, b.StockQuantity, b.CategoryID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert book %s: %w", b.ID, translateError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert book %s: %w", b.ID, err)
	}
	return n == 1, nil
}

// Create stores b, or returns the existing record when the id is already known.
func (r *BookRepository) Create(ctx context.Context, b *models.Book) (*models.Book, bool, error) {
	created, err := r.InsertIfAbsent(ctx, b)
	if err != nil {
		return nil, false, err
	}
	stored, err := r.FindByID(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// FindByID returns the book with the given id or ErrNotFound.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*models.Book, error) {
	query := `SELECT ` + bookSelectColumns + bookFromClause + ` WHERE b.book_id = $1`

	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get book %s: %w", id, err)
	}
	return &book, nil
}

// FindByCategoryName returns every book whose category has the given name.
func (r *BookRepository) FindByCategoryName(ctx context.Context, name string) ([]*models.Book, error) {
	query := `SELECT ` + bookSelectColumns + bookFromClause + ` WHERE c.category_name = $1 ORDER BY b.title ASC`

	var books []*models.Book
	if err := r.db.SelectContext(ctx, &books, query, name); err != nil {
		return nil, fmt.Errorf("failed to list books for category %q: %w", name, err)
	}
	if books == nil {
		books = []*models.Book{}
	}
	return books, nil
}

// List returns one page of books matching filter, ordered by title.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]*models.Book, error) {
	where, args := buildBookWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + bookSelectColumns + bookFromClause + where +
		fmt.Sprintf(" ORDER BY b.title ASC, b.book_id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var books []*models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	if books == nil {
		books = []*models.Book{}
	}
	return books, nil
}

// Count returns the number of books matching filter, ignoring pagination.
func (r *BookRepository) Count(ctx context.Context, filter models.BookFilter) (int, error) {
	where, args := buildBookWhere(filter)
	query := `SELECT COUNT(*) FROM books b` + where

	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return total, nil
}

// Update applies the non-nil fields of u.
func (r *BookRepository) Update(ctx context.Context, id string, u models.BookUpdate) (*models.Book, error) {
	query := `
		UPDATE books
		SET title = COALESCE($2, title),
			price = COALESCE($3, price),
			rating = COALESCE($4, rating),
			img = COALESCE($5, img),
			stock = COALESCE($6, stock),
			stock_quantity = COALESCE($7, stock_quantity),
			category_id = COALESCE($8, category_id)
		WHERE book_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, u.Title, u.Price, u.Rating, u.ImageURL, u.InStock, u.StockQuantity, u.CategoryID)
	if err := requireAffected("book", id, result, err); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes a book.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE book_id = $1`, id)
	return requireAffected("book", id, result, err)
}

func buildBookWhere(filter models.BookFilter) (string, []any) {
	whereClauses := []string{}
	args := []any{}
	argIndex := 1

	if filter.CategoryID != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("b.category_id = $%d", argIndex))
		args = append(args, filter.CategoryID)
		argIndex++
	}

	if filter.Title != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("b.title ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Title+"%")
		argIndex++
	}

	if filter.Price != nil {
		op := "="
		switch filter.Price.Type {
		case models.PriceGreaterThan:
			op = ">="
		case models.PriceLessThan:
			op = "<="
		}
		whereClauses = append(whereClauses, fmt.Sprintf("b.price %s $%d", op, argIndex))
		args = append(args, filter.Price.Value)
	}

	if len(whereClauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(whereClauses, " AND "), args
}

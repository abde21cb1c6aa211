package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-books-catalog/models"
)

// DefaultBatchSize is the number of books read from the store per query.
const DefaultBatchSize = 200

// BookSource pages through stored books.
type BookSource interface {
	List(ctx context.Context, filter models.BookFilter) ([]*models.Book, error)
}

// Exporter copies the stored catalog into a Writer.
type Exporter struct {
	source    BookSource
	batchSize int
	logger    *slog.Logger
}

// NewExporter creates an exporter. A non-positive batchSize selects DefaultBatchSize.
func NewExporter(source BookSource, batchSize int, logger *slog.Logger) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{source: source, batchSize: batchSize, logger: logger}
}

// Export writes every book matching filter to w and returns how many were
// written. Pagination fields of filter are ignored. A book seen on an earlier
// page is not written twice.
func (e *Exporter) Export(ctx context.Context, filter models.BookFilter, w Writer) (int, error) {
	seen := make(map[string]struct{})
	written := 0

	filter.Limit = e.batchSize
	for offset := 0; ; offset += e.batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		filter.Offset = offset
		books, err := e.source.List(ctx, filter)
		if err != nil {
			return written, fmt.Errorf("list books at offset %d: %w", offset, err)
		}

		batch := make([]*models.Book, 0, len(books))
		for _, book := range books {
			if _, dup := seen[book.ID]; dup {
				continue
			}
			seen[book.ID] = struct{}{}
			batch = append(batch, book)
		}
		if len(batch) > 0 {
			if err := w.Write(batch); err != nil {
				return written, err
			}
			written += len(batch)
		}

		e.logger.Debug("export progress",
			slog.Int("offset", offset),
			slog.Int("written", written),
		)

		if len(books) < e.batchSize {
			return written, nil
		}
	}
}

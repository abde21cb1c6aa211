package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-books-catalog/models"
)

// sweepCategory walks a category's listing pages by following the pager's
// next link and returns the number of books inserted. A failure on the first
// page is returned; a failure on a later page ends the sweep with the books
// added so far.
func (c *crawl) sweepCategory(ctx context.Context, category *models.Category) (int, error) {
	c.categories.Add(category.ID, category)

	next := c.categoryListingURL(category.ID)
	visited := make(map[string]struct{})
	total := 0

	for pageNum := 1; next != ""; pageNum++ {
		if _, seen := visited[next]; seen {
			c.logger.Warn("category pager loops back, stopping",
				slog.String("category_id", category.ID),
				slog.String("url", next),
			)
			break
		}
		visited[next] = struct{}{}

		result, err := c.crawlListing(ctx, next, category)
		if err != nil {
			if pageNum == 1 || errors.Is(err, ErrLayoutChanged) || ctx.Err() != nil {
				return 0, fmt.Errorf("listing page %d: %w", pageNum, err)
			}
			c.logger.Warn("category page failed, stopping sweep",
				slog.String("category_id", category.ID),
				slog.Int("page", pageNum),
				slog.String("url", next),
				slog.Any("error", err),
			)
			break
		}

		total += result.added
		if result.empty {
			break
		}
		next = result.next
	}

	c.logger.Info("category sweep finished",
		slog.String("category_id", category.ID),
		slog.Int("books_added", total),
	)
	return total, nil
}

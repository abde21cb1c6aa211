package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/parser"
)

// DiscoverCategories fetches the category index once and stores every leaf
// category that is not already known. Existing records are returned as they
// are. A category that cannot be stored is logged and left out; failing to
// fetch the index is fatal.
func (e *Engine) DiscoverCategories(ctx context.Context) ([]*models.Category, error) {
	if !e.mu.TryLock() {
		return nil, ErrCrawlInProgress
	}
	defer e.mu.Unlock()

	indexURL := e.categoryIndexURL()
	e.logger.Info("discovering categories", slog.String("url", indexURL))

	page, err := e.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, e.discoveryFailed(fmt.Errorf("fetch category index: %w", err))
	}

	links := parser.ListCategoryLinks(page.Doc)
	if len(links) == 0 {
		return nil, e.discoveryFailed(fmt.Errorf("%w: no categories on %s", ErrLayoutChanged, indexURL))
	}
	e.logger.Debug("category links found", slog.Int("count", len(links)))

	categories := make([]*models.Category, 0, len(links))
	created := 0
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		categoryURL := page.AbsoluteURL(link.Href)
		id, ok := parser.ResolveID(categoryURL)
		if id == "" {
			e.logger.Warn("category link without id", slog.String("url", categoryURL))
			continue
		}
		if !ok {
			e.logger.Warn("non-conforming category id, using it as is",
				slog.String("category_id", id),
				slog.String("url", categoryURL),
			)
		}

		category, inserted, err := e.storeCategory(ctx, &models.Category{
			ID:   id,
			Name: parser.NormalizeTitle(link.Name),
			URL:  categoryURL,
		})
		if err != nil {
			e.logger.Warn("failed to store category",
				slog.String("category_id", id),
				slog.Any("error", err),
			)
			continue
		}
		if inserted {
			created++
			e.metrics.IncCategoriesCreated()
		}
		categories = append(categories, category)
	}

	e.metrics.ObserveRun("categories", "ok")
	e.logger.Info("category discovery finished",
		slog.Int("processed", len(categories)),
		slog.Int("created", created),
	)
	return categories, nil
}

func (e *Engine) discoveryFailed(err error) error {
	e.metrics.ObserveRun("categories", "error")
	e.logger.Error("category discovery failed", slog.Any("error", err))
	return err
}

func (e *Engine) storeCategory(ctx context.Context, candidate *models.Category) (*models.Category, bool, error) {
	existing, err := e.stores.Categories.FindByID(ctx, candidate.ID)
	if err == nil {
		e.logger.Debug("category already stored", slog.String("category_id", candidate.ID))
		return existing, false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}

	inserted, err := e.stores.Categories.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Another writer stored it between the lookup and the insert.
		existing, err := e.stores.Categories.FindByID(ctx, candidate.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	e.logger.Info("category created",
		slog.String("category_id", candidate.ID),
		slog.String("name", candidate.Name),
	)
	return candidate, true, nil
}

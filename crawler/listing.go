package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/parser"
	"github.com/aluiziolira/go-books-catalog/scraper"
)

// Skip reasons, used as the metrics label and in log output.
const (
	skipMissingLink     = "missing_link"
	skipExists          = "exists"
	skipDetailFetch     = "detail_fetch"
	skipDetailLayout    = "detail_layout"
	skipUnknownCategory = "unknown_category"
	skipInvalid         = "invalid"
	skipStoreError      = "store_error"
)

// listingResult is the outcome of one listing page.
type listingResult struct {
	added int
	// empty is set when the page was missing (404) or had no item cards,
	// which marks the end of the catalog or category.
	empty bool
	// next is the absolute URL of the pager's next link, if any.
	next string
}

// crawlListing fetches pageURL and ingests its item cards. When category is
// nil each item's category is read from its detail page.
func (c *crawl) crawlListing(ctx context.Context, pageURL string, category *models.Category) (listingResult, error) {
	page, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if scraper.IsNotFound(err) {
			c.logger.Debug("listing not found", slog.String("url", pageURL))
			return listingResult{empty: true}, nil
		}
		return listingResult{}, err
	}
	return c.ingestListing(ctx, page, category)
}

func (c *crawl) ingestListing(ctx context.Context, page *scraper.Page, category *models.Category) (listingResult, error) {
	cards := parser.ListItemCards(page.Doc)
	if len(cards) == 0 {
		c.logger.Debug("listing has no books", slog.String("url", page.URL.String()))
		return listingResult{empty: true}, nil
	}

	var result listingResult
	for _, card := range cards {
		if err := ctx.Err(); err != nil {
			return listingResult{}, err
		}
		added, err := c.ingestCard(ctx, page, card, category)
		if err != nil {
			return listingResult{}, err
		}
		if added {
			result.added++
		}
	}

	if href, ok := parser.NextPageLink(page.Doc); ok {
		result.next = page.AbsoluteURL(href)
	}

	c.logger.Debug("listing ingested",
		slog.String("url", page.URL.String()),
		slog.Int("cards", len(cards)),
		slog.Int("added", result.added),
	)
	return result, nil
}

// ingestCard stores one item card and reports whether a book was inserted.
// Per-item problems are logged and skipped; only a layout change or a
// cancelled context is returned as an error.
func (c *crawl) ingestCard(ctx context.Context, page *scraper.Page, card parser.ItemCard, category *models.Category) (bool, error) {
	if card.Href == "" {
		c.skip(skipMissingLink, "", slog.String("title", card.Title))
		return false, nil
	}

	detailURL := page.AbsoluteURL(card.Href)
	bookID, ok := parser.ResolveID(detailURL)
	if bookID == "" {
		c.skip(skipMissingLink, "", slog.String("url", detailURL))
		return false, nil
	}
	if !ok {
		c.logger.Warn("non-conforming book id, using it as is",
			slog.String("book_id", bookID),
			slog.String("url", detailURL),
		)
	}

	_, err := c.stores.Books.FindByID(ctx, bookID)
	switch {
	case err == nil:
		c.skip(skipExists, bookID)
		return false, nil
	case !errors.Is(err, database.ErrNotFound):
		c.skip(skipStoreError, bookID, slog.Any("error", err))
		return false, nil
	}

	price, err := parser.ParsePrice(card.Price)
	if err != nil {
		return false, fmt.Errorf("%w: book %s: %v", ErrLayoutChanged, bookID, err)
	}

	book := &models.Book{
		ID:            bookID,
		Title:         parser.NormalizeTitle(card.Title),
		Price:         price,
		Rating:        parser.RatingToNumeric(card.Rating),
		InStock:       parser.InStock(card.Availability),
		StockQuantity: parser.StockQuantity(card.Availability),
	}
	if card.ImageSrc != "" {
		book.ImageURL = page.AbsoluteURL(card.ImageSrc)
	}

	categoryID := ""
	if category != nil {
		categoryID = category.ID
	} else {
		id, quantity, ok := c.detailCategory(ctx, bookID, detailURL)
		if !ok {
			return false, ctx.Err()
		}
		categoryID = id
		if book.StockQuantity == nil {
			book.StockQuantity = quantity
		}
	}

	owner, ok := c.lookupCategory(ctx, bookID, categoryID)
	if !ok {
		return false, ctx.Err()
	}
	book.CategoryID = owner.ID

	if err := parser.ValidateBook(book); err != nil {
		c.skip(skipInvalid, bookID, slog.Any("error", err))
		return false, nil
	}

	inserted, err := c.stores.Books.InsertIfAbsent(ctx, book)
	switch {
	case errors.Is(err, database.ErrForeignKey):
		c.skip(skipUnknownCategory, bookID, slog.String("category_id", owner.ID))
		return false, nil
	case errors.Is(err, database.ErrDuplicate):
		c.skip(skipExists, bookID)
		return false, nil
	case err != nil:
		c.skip(skipStoreError, bookID, slog.Any("error", err))
		return false, nil
	case !inserted:
		c.skip(skipExists, bookID)
		return false, nil
	}

	c.metrics.IncBooksAdded()
	c.logger.Debug("book added",
		slog.String("book_id", bookID),
		slog.String("category_id", owner.ID),
	)
	return true, nil
}

// detailCategory follows a book's detail page to find its category id and,
// when stated there, its exact stock quantity.
func (c *crawl) detailCategory(ctx context.Context, bookID, detailURL string) (string, *int, bool) {
	detail, err := c.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		c.skip(skipDetailFetch, bookID, slog.String("url", detailURL), slog.Any("error", err))
		return "", nil, false
	}

	link, ok := parser.ItemDetailCategory(detail.Doc)
	if !ok {
		c.skip(skipDetailLayout, bookID, slog.String("url", detailURL))
		return "", nil, false
	}

	categoryURL := detail.AbsoluteURL(link.Href)
	categoryID, conforming := parser.ResolveID(categoryURL)
	if categoryID == "" {
		c.skip(skipDetailLayout, bookID, slog.String("category_url", categoryURL))
		return "", nil, false
	}
	if !conforming {
		c.logger.Warn("non-conforming category id, using it as is",
			slog.String("category_id", categoryID),
			slog.String("url", categoryURL),
		)
	}

	quantity := parser.StockQuantity(parser.ItemDetailAvailability(detail.Doc))
	return categoryID, quantity, true
}

// lookupCategory returns the stored category, consulting the per-run cache
// first. Unknown categories are skipped, never created.
func (c *crawl) lookupCategory(ctx context.Context, bookID, categoryID string) (*models.Category, bool) {
	if cached, ok := c.categories.Get(categoryID); ok {
		return cached, true
	}

	category, err := c.stores.Categories.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.skip(skipUnknownCategory, bookID, slog.String("category_id", categoryID))
		} else {
			c.skip(skipStoreError, bookID, slog.String("category_id", categoryID), slog.Any("error", err))
		}
		return nil, false
	}

	c.categories.Add(categoryID, category)
	return category, true
}

func (c *crawl) skip(reason, bookID string, attrs ...any) {
	c.metrics.IncBooksSkipped(reason)

	args := append([]any{slog.String("reason", reason), slog.String("book_id", bookID)}, attrs...)
	if reason == skipExists {
		c.logger.Debug("book skipped", args...)
		return
	}
	c.logger.Warn("book skipped", args...)
}

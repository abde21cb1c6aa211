// Package crawler harvests the catalog site into the store. It discovers
// categories, ingests listing pages and category sweeps, and uses the crawl
// log as a durable cursor so repeated runs make incremental progress.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/scraper"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrInvalidTarget is returned for a crawl request naming both a page and a category,
	// or naming an out-of-range page.
	ErrInvalidTarget = errors.New("crawler: invalid crawl target")
	// ErrCategoryUnknown is returned when a category crawl names an id that is not stored.
	ErrCategoryUnknown = errors.New("crawler: category unknown")
	// ErrLayoutChanged is returned when a listing no longer has the expected shape.
	ErrLayoutChanged = errors.New("crawler: catalog layout changed")
	// ErrCrawlInProgress is returned when another crawl is running in this process.
	ErrCrawlInProgress = errors.New("crawler: crawl already in progress")
)

// PageFetcher downloads one catalog document.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scraper.Page, error)
}

// CategoryStore is the category side of the store used by the engine.
type CategoryStore interface {
	FindByID(ctx context.Context, id string) (*models.Category, error)
	CreateIfAbsent(ctx context.Context, c *models.Category) (bool, error)
	MarkRefreshed(ctx context.Context, id string, at time.Time) (*models.Category, error)
}

// BookStore is the book side of the store used by the engine.
type BookStore interface {
	FindByID(ctx context.Context, id string) (*models.Book, error)
	InsertIfAbsent(ctx context.Context, b *models.Book) (bool, error)
}

// CrawlLogStore persists the crawl cursor.
type CrawlLogStore interface {
	Create(ctx context.Context, e *models.CrawlLogEntry) error
	LastPage(ctx context.Context) (int, bool, error)
	PageLogged(ctx context.Context, page int) (bool, error)
}

// Stores groups the persistence capabilities the engine writes through.
type Stores struct {
	Categories CategoryStore
	Books      BookStore
	Logs       CrawlLogStore
}

// Summary describes a finished crawl.
type Summary struct {
	Message    string `json:"message"`
	Count      int    `json:"count"`
	Page       int    `json:"page,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
}

// Engine runs crawls. Only one crawl runs at a time per engine; a concurrent
// caller gets ErrCrawlInProgress.
type Engine struct {
	root      string
	cacheSize int
	fetcher   PageFetcher
	stores    Stores
	metrics   *scraper.Metrics
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewEngine wires an engine from its collaborators.
func NewEngine(cfg *config.Config, fetcher PageFetcher, stores Stores, metrics *scraper.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := cfg.CategoryCacheSize
	if size < 1 {
		size = 1
	}
	return &Engine{
		root:      cfg.CatalogRoot(),
		cacheSize: size,
		fetcher:   fetcher,
		stores:    stores,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one crawl for target and records it in the crawl log. The log
// entry is written only when the crawl succeeds.
func (e *Engine) Run(ctx context.Context, target Target) (Summary, error) {
	if err := target.validate(); err != nil {
		return Summary{}, err
	}
	if !e.mu.TryLock() {
		return Summary{}, ErrCrawlInProgress
	}
	defer e.mu.Unlock()

	start := e.now()
	c := e.newCrawl()

	var (
		summary Summary
		err     error
	)
	switch target.Mode() {
	case ModePage:
		summary, err = c.runPage(ctx, target.page, nil)
	case ModeCategory:
		summary, err = c.runCategory(ctx, target.categoryID)
	default:
		summary, err = c.runAuto(ctx)
	}

	mode := target.Mode().String()
	if err != nil {
		e.metrics.ObserveRun(mode, "error")
		e.logger.Error("crawl failed",
			slog.String("mode", mode),
			slog.Any("error", err),
		)
		return Summary{}, err
	}

	e.metrics.ObserveRun(mode, "ok")
	e.logger.Info("crawl finished",
		slog.String("mode", mode),
		slog.Int("books_added", summary.Count),
		slog.Duration("elapsed", e.now().Sub(start)),
	)
	return summary, nil
}

// crawl is the state of a single run.
type crawl struct {
	*Engine
	categories *lru.Cache[string, *models.Category]
}

func (e *Engine) newCrawl() *crawl {
	cache, err := lru.New[string, *models.Category](e.cacheSize)
	if err != nil {
		// Only reachable with a non-positive size, which NewEngine rules out.
		panic(fmt.Sprintf("category cache: %v", err))
	}
	return &crawl{Engine: e, categories: cache}
}

func (c *crawl) runPage(ctx context.Context, page int, prefetched *scraper.Page) (Summary, error) {
	var (
		result listingResult
		err    error
	)
	if prefetched != nil {
		result, err = c.ingestListing(ctx, prefetched, nil)
	} else {
		result, err = c.crawlListing(ctx, c.pageURL(page), nil)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("crawl page %d: %w", page, err)
	}

	entry := &models.CrawlLogEntry{BooksAdded: result.added, Page: &page}
	if err := c.stores.Logs.Create(ctx, entry); err != nil {
		return Summary{}, fmt.Errorf("record crawl of page %d: %w", page, err)
	}
	c.metrics.SetLastPage(page)

	message := fmt.Sprintf("%d books added from page %d", result.added, page)
	if result.empty {
		message = fmt.Sprintf("page %d has no books, end of catalog reached", page)
	}
	return Summary{Message: message, Count: result.added, Page: page}, nil
}

func (c *crawl) runCategory(ctx context.Context, categoryID string) (Summary, error) {
	category, err := c.stores.Categories.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Summary{}, fmt.Errorf("%w: %s", ErrCategoryUnknown, categoryID)
		}
		return Summary{}, fmt.Errorf("load category %s: %w", categoryID, err)
	}

	added, err := c.sweepCategory(ctx, category)
	if err != nil {
		return Summary{}, fmt.Errorf("crawl category %s: %w", categoryID, err)
	}

	entry := &models.CrawlLogEntry{BooksAdded: added, CategoryID: &category.ID}
	if err := c.stores.Logs.Create(ctx, entry); err != nil {
		return Summary{}, fmt.Errorf("record crawl of category %s: %w", categoryID, err)
	}
	if _, err := c.stores.Categories.MarkRefreshed(ctx, category.ID, c.now()); err != nil {
		return Summary{}, fmt.Errorf("mark category %s refreshed: %w", categoryID, err)
	}

	return Summary{
		Message:    fmt.Sprintf("%d books added from category %s", added, category.Name),
		Count:      added,
		CategoryID: category.ID,
	}, nil
}

func (c *crawl) runAuto(ctx context.Context) (Summary, error) {
	page, prefetched, err := c.plan(ctx)
	if err != nil {
		return Summary{}, err
	}
	c.logger.Info("resuming catalog crawl", slog.Int("page", page))
	return c.runPage(ctx, page, prefetched)
}

func (e *Engine) categoryIndexURL() string {
	return e.root + "/catalogue/category/books_1/index.html"
}

func (e *Engine) pageURL(page int) string {
	return fmt.Sprintf("%s/catalogue/page-%d.html", e.root, page)
}

func (e *Engine) categoryListingURL(categoryID string) string {
	return e.root + "/catalogue/category/books/" + strings.TrimSpace(categoryID) + "/index.html"
}

// Package api exposes the crawl engine and the catalog store over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-books-catalog/crawler"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/scraper"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Minute
	idleTimeout       = 2 * time.Minute
)

// Crawler starts crawls on behalf of HTTP callers.
type Crawler interface {
	DiscoverCategories(ctx context.Context) ([]*models.Category, error)
	Run(ctx context.Context, target crawler.Target) (crawler.Summary, error)
}

// BookStore is the book repository as used by the handlers.
type BookStore interface {
	Create(ctx context.Context, b *models.Book) (*models.Book, bool, error)
	FindByID(ctx context.Context, id string) (*models.Book, error)
	FindByCategoryName(ctx context.Context, name string) ([]*models.Book, error)
	List(ctx context.Context, filter models.BookFilter) ([]*models.Book, error)
	Count(ctx context.Context, filter models.BookFilter) (int, error)
	Update(ctx context.Context, id string, u models.BookUpdate) (*models.Book, error)
	Delete(ctx context.Context, id string) error
}

// CategoryStore is the category repository as used by the handlers.
type CategoryStore interface {
	Create(ctx context.Context, c *models.Category) error
	FindByID(ctx context.Context, id string) (*models.Category, error)
	FindByName(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Update(ctx context.Context, id string, u models.CategoryUpdate) (*models.Category, error)
	Delete(ctx context.Context, id string) error
}

// CrawlLogStore lists past crawls.
type CrawlLogStore interface {
	List(ctx context.Context) ([]*models.CrawlLogEntry, error)
}

// Dependencies are the collaborators the router is built from.
type Dependencies struct {
	Crawler    Crawler
	Books      BookStore
	Categories CategoryStore
	CrawlLogs  CrawlLogStore
	Metrics    *scraper.Metrics
}

// SetupRouter builds the gin engine with every route mounted.
func SetupRouter(deps Dependencies, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	scraping := NewScrapingHandler(deps.Crawler, deps.CrawlLogs, logger)
	scrapingGroup := router.Group("/scraping")
	scrapingGroup.GET("", scraping.ListLogs)
	scrapingGroup.POST("/categories", scraping.DiscoverCategories)
	scrapingGroup.POST("/books", scraping.CrawlBooks)

	books := NewBooksHandler(deps.Books, logger)
	booksGroup := router.Group("/books")
	booksGroup.GET("", books.List)
	booksGroup.POST("", books.Create)
	booksGroup.GET("/:id", books.Get)
	booksGroup.PATCH("/:id", books.Update)
	booksGroup.DELETE("/:id", books.Delete)

	categories := NewCategoriesHandler(deps.Categories, logger)
	categoriesGroup := router.Group("/categories")
	categoriesGroup.GET("", categories.List)
	categoriesGroup.POST("", categories.Create)
	categoriesGroup.GET("/:id", categories.Get)
	categoriesGroup.PATCH("/:id", categories.Update)
	categoriesGroup.DELETE("/:id", categories.Delete)

	return router
}

// NewHTTPServer wraps handler in a server listening on addr.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// loggingMiddleware logs one line per request.
func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aluiziolira/go-books-catalog/crawler"
	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/scraper"
	"github.com/gin-gonic/gin"
)

// ScrapingHandler triggers crawls and lists the crawl log.
type ScrapingHandler struct {
	crawler Crawler
	logs    CrawlLogStore
	logger  *slog.Logger
}

// NewScrapingHandler creates a scraping handler.
func NewScrapingHandler(c Crawler, logs CrawlLogStore, logger *slog.Logger) *ScrapingHandler {
	return &ScrapingHandler{crawler: c, logs: logs, logger: logger}
}

// crawlBooksRequest selects the crawl target. Both fields are optional but
// mutually exclusive.
type crawlBooksRequest struct {
	Page     *int    `json:"page"`
	Category *string `json:"category"`
}

// DiscoverCategories handles POST /scraping/categories.
func (h *ScrapingHandler) DiscoverCategories(c *gin.Context) {
	h.logger.Info("category discovery requested")

	categories, err := h.crawler.DiscoverCategories(c.Request.Context())
	if err != nil {
		h.respondCrawlError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           fmt.Sprintf("Category scraping completed successfully. %d categories processed.", len(categories)),
		"createdCategories": categories,
	})
}

// CrawlBooks handles POST /scraping/books.
func (h *ScrapingHandler) CrawlBooks(c *gin.Context) {
	var req crawlBooksRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	target, err := crawler.NewTarget(req.Page, req.Category)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	summary, err := h.crawler.Run(c.Request.Context(), target)
	if err != nil {
		h.respondCrawlError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListLogs handles GET /scraping.
func (h *ScrapingHandler) ListLogs(c *gin.Context) {
	entries, err := h.logs.List(c.Request.Context())
	if err != nil {
		respondStoreError(c, h.logger, "crawl log", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":  entries,
		"total": len(entries),
	})
}

// respondCrawlError maps a failed crawl onto a status. Failures of the catalog
// site itself answer 502; store failures answer 500. The engine has already
// logged the failure.
func (h *ScrapingHandler) respondCrawlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, crawler.ErrInvalidTarget),
		errors.Is(err, crawler.ErrCategoryUnknown),
		errors.Is(err, crawler.ErrCrawlInProgress),
		errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, database.ErrDuplicate),
		errors.Is(err, database.ErrForeignKey):
		respondStoreError(c, h.logger, "crawl", err)
	case scraper.IsFetchError(err), errors.Is(err, crawler.ErrLayoutChanged):
		respondError(c, http.StatusBadGateway, "crawl failed: "+err.Error())
	default:
		respondInternalError(c, "crawl failed")
	}
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aluiziolira/go-books-catalog/crawler"
	"github.com/aluiziolira/go-books-catalog/database"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/gin-gonic/gin"
)

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondNotFound sends a 404 with resource not found message.
func respondNotFound(c *gin.Context, resource string) {
	respondError(c, http.StatusNotFound, resource+" not found")
}

// respondBadRequest sends a 400 with message.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondInternalError sends a 500 with message.
func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, message)
}

// respondStoreError maps engine and store errors onto HTTP statuses.
func respondStoreError(c *gin.Context, logger *slog.Logger, resource string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondNotFound(c, resource)
	case errors.Is(err, crawler.ErrCategoryUnknown):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, crawler.ErrInvalidTarget), errors.Is(err, models.ErrInvalidQuery):
		respondBadRequest(c, err.Error())
	case errors.Is(err, database.ErrDuplicate):
		respondError(c, http.StatusConflict, resource+" already exists")
	case errors.Is(err, database.ErrForeignKey):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, crawler.ErrCrawlInProgress):
		respondError(c, http.StatusConflict, err.Error())
	default:
		logger.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("resource", resource),
			slog.Any("error", err),
		)
		respondInternalError(c, "failed to process "+resource)
	}
}

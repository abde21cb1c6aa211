package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/parser"
	"github.com/gin-gonic/gin"
)

// BooksHandler serves the /books resource.
type BooksHandler struct {
	books  BookStore
	logger *slog.Logger
}

// NewBooksHandler creates a books handler.
func NewBooksHandler(books BookStore, logger *slog.Logger) *BooksHandler {
	return &BooksHandler{books: books, logger: logger}
}

type createBookRequest struct {
	ID            string   `json:"book_id" binding:"required"`
	Title         string   `json:"title" binding:"required"`
	Price         *float64 `json:"price" binding:"required,min=0"`
	Rating        int      `json:"rating" binding:"min=0,max=5"`
	ImageURL      string   `json:"img"`
	InStock       bool     `json:"stock"`
	StockQuantity *int     `json:"stock_quantity" binding:"omitempty,min=0"`
	CategoryID    string   `json:"category_id" binding:"required"`
}

// List handles GET /books. With ?category=<name> it returns every book of
// that category; otherwise it returns one filtered page.
func (h *BooksHandler) List(c *gin.Context) {
	if name, ok := c.GetQuery("category"); ok {
		books, err := h.books.FindByCategoryName(c.Request.Context(), parser.NormalizeTitle(name))
		if err != nil {
			respondStoreError(c, h.logger, "books", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": books, "total": len(books)})
		return
	}

	var query models.BookQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBadRequest(c, "Invalid query: "+err.Error())
		return
	}
	filter, err := query.Filter()
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	books, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, h.logger, "books", err)
		return
	}
	total, err := h.books.Count(c.Request.Context(), filter)
	if err != nil {
		respondStoreError(c, h.logger, "books", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  books,
		"total": total,
		"page":  filter.Offset/filter.Limit + 1,
		"limit": filter.Limit,
	})
}

// Get handles GET /books/:id.
func (h *BooksHandler) Get(c *gin.Context) {
	book, err := h.books.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, h.logger, "book", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// Create handles POST /books. When the id is already stored the existing
// record is returned unchanged with 200.
func (h *BooksHandler) Create(c *gin.Context) {
	var req createBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	book := &models.Book{
		ID:            strings.TrimSpace(req.ID),
		Title:         req.Title,
		Price:         *req.Price,
		Rating:        req.Rating,
		ImageURL:      req.ImageURL,
		InStock:       req.InStock,
		StockQuantity: req.StockQuantity,
		CategoryID:    strings.TrimSpace(req.CategoryID),
	}
	if err := parser.ValidateBook(book); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	stored, created, err := h.books.Create(c.Request.Context(), book)
	if err != nil {
		respondStoreError(c, h.logger, "book", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, stored)
}

// Update handles PATCH /books/:id.
func (h *BooksHandler) Update(c *gin.Context) {
	var update models.BookUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	book, err := h.books.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondStoreError(c, h.logger, "book", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

// Delete handles DELETE /books/:id.
func (h *BooksHandler) Delete(c *gin.Context) {
	if err := h.books.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondStoreError(c, h.logger, "book", err)
		return
	}
	c.Status(http.StatusNoContent)
}

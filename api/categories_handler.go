package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/parser"
	"github.com/gin-gonic/gin"
)

// CategoriesHandler serves the /categories resource.
type CategoriesHandler struct {
	categories CategoryStore
	logger     *slog.Logger
}

// NewCategoriesHandler creates a categories handler.
func NewCategoriesHandler(categories CategoryStore, logger *slog.Logger) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, logger: logger}
}

type createCategoryRequest struct {
	ID   string `json:"category_id" binding:"required"`
	Name string `json:"category_name" binding:"required"`
	URL  string `json:"category_url" binding:"required,url"`
}

// List handles GET /categories, or a single lookup with ?name=<name>.
func (h *CategoriesHandler) List(c *gin.Context) {
	if name, ok := c.GetQuery("name"); ok {
		category, err := h.categories.FindByName(c.Request.Context(), parser.NormalizeTitle(name))
		if err != nil {
			respondStoreError(c, h.logger, "category", err)
			return
		}
		c.JSON(http.StatusOK, category)
		return
	}

	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		respondStoreError(c, h.logger, "categories", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories, "total": len(categories)})
}

// Get handles GET /categories/:id.
func (h *CategoriesHandler) Get(c *gin.Context) {
	category, err := h.categories.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, h.logger, "category", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// Create handles POST /categories.
func (h *CategoriesHandler) Create(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	category := &models.Category{
		ID:   strings.TrimSpace(req.ID),
		Name: parser.NormalizeTitle(req.Name),
		URL:  req.URL,
	}
	if err := h.categories.Create(c.Request.Context(), category); err != nil {
		respondStoreError(c, h.logger, "category", err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// Update handles PATCH /categories/:id.
func (h *CategoriesHandler) Update(c *gin.Context) {
	var update models.CategoryUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if update.Name != nil {
		name := parser.NormalizeTitle(*update.Name)
		update.Name = &name
	}

	category, err := h.categories.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondStoreError(c, h.logger, "category", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// Delete handles DELETE /categories/:id. Categories that still own books
// answer 409.
func (h *CategoriesHandler) Delete(c *gin.Context) {
	if err := h.categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondStoreError(c, h.logger, "category", err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"searchcore/internal/model"
	"searchcore/internal/repository"
	"searchcore/internal/search"
)

// SearchHandler handles search-related HTTP requests
type SearchHandler struct {
	orchestrator *search.Orchestrator
	repo         repository.PropertyRepository
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(orchestrator *search.Orchestrator, repo repository.PropertyRepository) *SearchHandler {
	return &SearchHandler{
		orchestrator: orchestrator,
		repo:         repo,
	}
}

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	response, err := h.orchestrator.Search(c.Request.Context(), req)
	if err != nil {
		// The orchestrator only errors on caller input; anything the
		// backends get wrong comes back as a degraded 200 instead.
		if errors.Is(err, model.ErrUnknownLocale) || errors.Is(err, model.ErrInvalidPagination) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetProperty handles GET /api/v1/properties/:id
func (h *SearchHandler) GetProperty(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	property, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property: " + err.Error()})
		return
	}
	if property == nil || !property.Searchable() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	c.JSON(http.StatusOK, property)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"searchcore/internal/reindex"
)

// ReindexHandler triggers vector-index refresh passes.
type ReindexHandler struct {
	reindexer *reindex.Reindexer
}

// NewReindexHandler creates a new reindex handler
func NewReindexHandler(reindexer *reindex.Reindexer) *ReindexHandler {
	return &ReindexHandler{reindexer: reindexer}
}

// Run handles POST /api/v1/reindex. The pass runs synchronously; content
// hashing keeps repeat runs cheap.
func (h *ReindexHandler) Run(c *gin.Context) {
	if h.reindexer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No embedding provider configured"})
		return
	}

	report, err := h.reindexer.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reindex failed: " + err.Error(), "report": report})
		return
	}

	c.JSON(http.StatusOK, report)
}

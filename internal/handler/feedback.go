package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"searchcore/internal/search"
)

// FeedbackHandler records result interactions for relevance tuning.
type FeedbackHandler struct {
	orchestrator *search.Orchestrator
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(orchestrator *search.Orchestrator) *FeedbackHandler {
	return &FeedbackHandler{orchestrator: orchestrator}
}

type feedbackRequest struct {
	SearchID   string `json:"search_id" binding:"required"`
	PropertyID string `json:"property_id" binding:"required"`
	Action     string `json:"action" binding:"required"`
}

var allowedActions = map[string]bool{
	"click":   true,
	"save":    true,
	"contact": true,
	"dismiss": true,
}

// Record handles POST /api/v1/feedback
func (h *FeedbackHandler) Record(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !allowedActions[req.Action] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown action: " + req.Action})
		return
	}

	if err := h.orchestrator.RecordFeedback(c.Request.Context(), req.SearchID, req.PropertyID, req.Action); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record feedback: " + err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

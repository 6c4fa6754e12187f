// Package api exposes the analysis pipeline over HTTP: submission,
// polling, history, statistics, the pattern catalog, and feedback.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeguard/codeguard/internal/database"
	"github.com/codeguard/codeguard/internal/explainer"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/internal/orchestrator"
	"github.com/codeguard/codeguard/pkg/types"
)

// Handlers binds the HTTP surface to the orchestrator and store.
type Handlers struct {
	orch  *orchestrator.Orchestrator
	store *database.Store
	log   *logger.Logger
}

func NewHandlers(orch *orchestrator.Orchestrator, store *database.Store, log *logger.Logger) *Handlers {
	return &Handlers{orch: orch, store: store, log: log.WithComponent("api")}
}

// Register mounts all routes on the router group.
func (h *Handlers) Register(group *gin.RouterGroup) {
	group.POST("/analyze", h.analyze)
	group.GET("/analysis/:id", h.getAnalysis)
	group.DELETE("/analysis/:id", h.deleteAnalysis)
	group.GET("/history", h.history)
	group.GET("/stats", h.stats)
	group.GET("/patterns", h.patterns)
	group.POST("/feedback", h.feedback)
}

type analyzeRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Code   string `json:"code"`
}

// analyze runs Phase A synchronously and returns the preliminary
// record with status=processing; callers poll /api/analysis/{id}
// until it flips to complete.
func (h *Handlers) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required: " + err.Error()})
		return
	}

	analysis, err := h.orch.Analyze(c.Request.Context(), req.Prompt, req.Code)
	if err != nil {
		h.log.LogError(c.Request.Context(), err, "api.analyze")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

func (h *Handlers) getAnalysis(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	analysis, err := h.store.GetAnalysis(ctx, c.Param("id"))
	if err == database.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if err != nil {
		h.log.LogError(ctx, err, "api.getAnalysis", "analysis_id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

func (h *Handlers) deleteAnalysis(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := h.store.DeleteAnalysis(ctx, c.Param("id"))
	if err == database.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if err != nil {
		h.log.LogError(ctx, err, "api.deleteAnalysis", "analysis_id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "analysis deleted", "analysis_id": c.Param("id")})
}

func (h *Handlers) history(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, ok := atoi(raw); ok && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	analyses, err := h.store.ListAnalyses(ctx, limit)
	if err != nil {
		h.log.LogError(ctx, err, "api.history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type entry struct {
		AnalysisID      string               `json:"analysis_id"`
		Prompt          string               `json:"prompt"`
		Status          types.AnalysisStatus `json:"status"`
		OverallSeverity int                  `json:"overall_severity"`
		HasBugs         bool                 `json:"has_bugs"`
		CreatedAt       time.Time            `json:"created_at"`
	}
	entries := make([]entry, 0, len(analyses))
	for _, a := range analyses {
		prompt := a.Prompt
		if len(prompt) > 100 {
			prompt = prompt[:100] + "..."
		}
		entries = append(entries, entry{
			AnalysisID:      a.ID,
			Prompt:          prompt,
			Status:          a.Status,
			OverallSeverity: a.OverallSeverity,
			HasBugs:         a.HasBugs,
			CreatedAt:       a.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"total": len(entries), "analyses": entries})
}

func (h *Handlers) stats(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.store.GetStats(ctx)
	if err != nil {
		h.log.LogError(ctx, err, "api.stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) patterns(c *gin.Context) {
	catalog := explainer.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"total_patterns": len(catalog),
		"patterns":       catalog,
	})
}

type feedbackRequest struct {
	AnalysisID string `json:"analysis_id" binding:"required"`
	Rating     int    `json:"rating" binding:"required"`
	Comment    string `json:"comment"`
	Helpful    bool   `json:"helpful"`
}

func (h *Handlers) feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fb := &types.Feedback{
		AnalysisID: req.AnalysisID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Helpful:    req.Helpful,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	err := h.store.SaveFeedback(ctx, fb)
	if err == database.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, fb)
}

func atoi(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

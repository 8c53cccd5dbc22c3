package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/analytics"
)

// AnalyticsHandler serves the dashboard aggregate endpoints.
type AnalyticsHandler struct {
	engine *analytics.Engine
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(engine *analytics.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

// Overview handles GET /api/v1/analytics/overview.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	o, err := h.engine.Overview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, o)
}

// Intents handles GET /api/v1/analytics/intents.
func (h *AnalyticsHandler) Intents(c *gin.Context) {
	h.distribution(c, h.engine.IntentDistribution)
}

// SubIntents handles GET /api/v1/analytics/sub-intents.
func (h *AnalyticsHandler) SubIntents(c *gin.Context) {
	h.distribution(c, h.engine.SubIntentDistribution)
}

// Speakers handles GET /api/v1/analytics/speakers.
func (h *AnalyticsHandler) Speakers(c *gin.Context) {
	h.distribution(c, h.engine.SpeakerDistribution)
}

// Agents handles GET /api/v1/analytics/agents.
func (h *AnalyticsHandler) Agents(c *gin.Context) {
	h.distribution(c, h.engine.AgentPerformance)
}

// CallStatuses handles GET /api/v1/analytics/call-statuses.
func (h *AnalyticsHandler) CallStatuses(c *gin.Context) {
	h.distribution(c, h.engine.CallStatusDistribution)
}

// Dispositions handles GET /api/v1/analytics/dispositions.
func (h *AnalyticsHandler) Dispositions(c *gin.Context) {
	d, err := h.engine.Dispositions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

// DailyTrends handles GET /api/v1/analytics/daily-trends?days=30.
func (h *AnalyticsHandler) DailyTrends(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	trends, err := h.engine.DailyTrends(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trends": trends, "days": len(trends)})
}

// Hourly handles GET /api/v1/analytics/hourly.
func (h *AnalyticsHandler) Hourly(c *gin.Context) {
	hours, err := h.engine.HourlyDistribution(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours})
}

// Performance handles GET /api/v1/analytics/performance.
func (h *AnalyticsHandler) Performance(c *gin.Context) {
	p, err := h.engine.Performance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *AnalyticsHandler) distribution(c *gin.Context, fn func(ctx context.Context) (*analytics.Distribution, error)) {
	d, err := fn(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

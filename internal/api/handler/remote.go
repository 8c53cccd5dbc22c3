package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/remote"
)

// RemoteHandler serves the S3 recording endpoints. When remote sync is
// disabled the handler is constructed with nil and every endpoint reports
// that the feature is off.
type RemoteHandler struct {
	manager   *remote.Manager
	scheduler *remote.Scheduler
}

// NewRemoteHandler creates a new remote handler. Both arguments may be nil
// when remote sync is disabled.
func NewRemoteHandler(manager *remote.Manager, scheduler *remote.Scheduler) *RemoteHandler {
	return &RemoteHandler{manager: manager, scheduler: scheduler}
}

func (h *RemoteHandler) disabled(c *gin.Context) bool {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Remote sync is disabled"})
		return true
	}
	return false
}

// Recordings handles GET /api/v1/remote/recordings?limit=100.
func (h *RemoteHandler) Recordings(c *gin.Context) {
	if h.disabled(c) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	objects, err := h.manager.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to list remote recordings: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recordings": objects,
		"count":      len(objects),
		"bucket":     h.manager.Bucket(),
	})
}

// Stats handles GET /api/v1/remote/stats.
func (h *RemoteHandler) Stats(c *gin.Context) {
	if h.disabled(c) {
		return
	}

	stats, err := h.manager.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get bucket stats: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Sync handles POST /api/v1/remote/sync to trigger an immediate sync pass.
// A sync already in progress is not stacked; the caller gets a 409.
func (h *RemoteHandler) Sync(c *gin.Context) {
	if h.disabled(c) {
		return
	}

	result, ran, err := h.scheduler.TriggerSync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Sync failed: " + err.Error()})
		return
	}
	if !ran {
		c.JSON(http.StatusConflict, gin.H{"error": "A sync is already in progress"})
		return
	}
	c.JSON(http.StatusOK, result)
}

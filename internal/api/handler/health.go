package handler

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/pipeline"
	"github.com/jordanw/callscope/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	cfg     *config.Config
	st      store.Store
	pipe    *pipeline.Pipeline
	started time.Time
	version string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg *config.Config, st store.Store, pipe *pipeline.Pipeline, version string) *HealthHandler {
	return &HealthHandler{cfg: cfg, st: st, pipe: pipe, started: time.Now(), version: version}
}

// Health returns the health status of the service: store reachability,
// intake/processed directory presence, vendor key presence, and the current
// pipeline queue depth. Any failed check degrades the overall status to 503.
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	overall := "ok"

	storeStatus := "ok"
	count, err := h.st.Count(c.Request.Context())
	if err != nil {
		status = http.StatusServiceUnavailable
		overall = "degraded"
		storeStatus = err.Error()
	}

	checks := gin.H{
		"store":         storeStatus,
		"intake_dir":    dirCheck(h.cfg.Paths.IntakeDir),
		"processed_dir": dirCheck(h.cfg.Paths.ProcessedDir),
		"deepgram_key":  keyCheck(h.cfg.Deepgram.APIKey),
		"openai_key":    keyCheck(h.cfg.OpenAI.APIKey),
	}
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			break
		}
	}

	queueDepth := 0
	if h.pipe != nil {
		queueDepth = h.pipe.QueueDepth()
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"checks":         checks,
		"records":        count,
		"queue_depth":    queueDepth,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"version":        h.version,
	})
}

func dirCheck(dir string) string {
	if dir == "" {
		return "not configured"
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err.Error()
	}
	if !info.IsDir() {
		return "not a directory"
	}
	return "ok"
}

func keyCheck(key string) string {
	if key == "" {
		return "missing"
	}
	return "ok"
}

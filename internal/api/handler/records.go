package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/api/middleware"
	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/pipeline"
	"github.com/jordanw/callscope/internal/store"
)

// RecordsHandler serves the call record CRUD surface.
type RecordsHandler struct {
	st        store.Store
	pipe      *pipeline.Pipeline
	intakeDir string
}

// NewRecordsHandler creates a new records handler.
// Parameters:
//   - st: record store.
//   - pipe: processing pipeline, used for reprocessing.
//   - intakeDir: directory reprocessed audio is restored into.
// Returns:
//   - *RecordsHandler: initialized handler.
func NewRecordsHandler(st store.Store, pipe *pipeline.Pipeline, intakeDir string) *RecordsHandler {
	return &RecordsHandler{st: st, pipe: pipe, intakeDir: intakeDir}
}

// List handles GET /api/v1/records.
// Supports limit/offset pagination and an optional status filter.
func (h *RecordsHandler) List(c *gin.Context) {
	records, err := h.st.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records: " + err.Error()})
		return
	}

	if status := c.Query("status"); status != "" {
		filtered := records[:0]
		for _, r := range records {
			if string(r.Status) == status {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	total := len(records)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset > len(records) {
		offset = len(records)
	}
	records = records[offset:]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get handles GET /api/v1/records/:filename.
func (h *RecordsHandler) Get(c *gin.Context) {
	filename := c.Param("filename")

	rec, err := h.st.Get(c.Request.Context(), filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Latest handles GET /api/v1/records/latest/:count.
func (h *RecordsHandler) Latest(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil || count <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Count must be a positive integer"})
		return
	}

	records, err := h.st.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) > count {
		records = records[:count]
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Search handles GET /api/v1/search?q=.
func (h *RecordsHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	records, err := h.st.Search(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   len(records),
		"query":   query,
	})
}

// Delete handles DELETE /api/v1/records/:filename.
func (h *RecordsHandler) Delete(c *gin.Context) {
	filename := c.Param("filename")

	if h.pipe != nil && h.pipe.InFlight(filename) {
		c.JSON(http.StatusConflict, gin.H{"error": "File is currently being processed"})
		return
	}

	if err := h.st.Delete(c.Request.Context(), filename); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	middleware.GetLogger(c).WithField("filename", filename).Info("Record deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Record deleted", "filename": filename})
}

// Reprocess handles POST /api/v1/records/:filename/reprocess. A file that is
// already queued or running returns 409 rather than queuing a second run.
func (h *RecordsHandler) Reprocess(c *gin.Context) {
	filename := c.Param("filename")

	err := h.pipe.Reprocess(c.Request.Context(), h.intakeDir, filename)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"message": "Reprocessing queued", "filename": filename})
	case errors.Is(err, pipeline.ErrInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "File is currently being processed"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	case errors.Is(err, pipeline.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Processing queue is full"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Stats handles GET /api/v1/stats with quick status counts.
func (h *RecordsHandler) Stats(c *gin.Context) {
	records, err := h.st.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	counts := map[domain.RecordStatus]int{}
	for _, r := range records {
		counts[r.Status]++
	}

	c.JSON(http.StatusOK, gin.H{
		"total":      len(records),
		"completed":  counts[domain.StatusCompleted],
		"failed":     counts[domain.StatusFailed],
		"processing": counts[domain.StatusProcessing],
		"pending":    counts[domain.StatusPending],
	})
}

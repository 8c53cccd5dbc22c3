package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/api/middleware"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/pipeline"
)

// UploadHandler accepts audio files over HTTP and feeds them to the pipeline.
type UploadHandler struct {
	pipe         *pipeline.Pipeline
	intakeDir    string
	maxSizeBytes int64
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(pipe *pipeline.Pipeline, intakeDir string, maxSizeMB int) *UploadHandler {
	return &UploadHandler{
		pipe:         pipe,
		intakeDir:    intakeDir,
		maxSizeBytes: int64(maxSizeMB) * 1024 * 1024,
	}
}

type uploadResult struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Upload handles POST /api/v1/upload. Accepts one or more files in the
// multipart "file" field; each is saved into the intake directory and queued
// immediately, without going through the watcher. Per-file failures do not
// abort the batch.
func (h *UploadHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart form is required"})
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart field 'file' is required"})
		return
	}

	if err := os.MkdirAll(h.intakeDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare intake directory"})
		return
	}

	log := middleware.GetLogger(c)
	results := make([]uploadResult, 0, len(files))
	queued := 0
	for _, file := range files {
		filename := filepath.Base(file.Filename)

		if !config.IsSupportedAudioFile(filename) {
			results = append(results, uploadResult{filename, "rejected", "unsupported audio format"})
			continue
		}
		if h.maxSizeBytes > 0 && file.Size > h.maxSizeBytes {
			results = append(results, uploadResult{
				filename, "rejected",
				fmt.Sprintf("file exceeds the %d MB limit", h.maxSizeBytes/1024/1024),
			})
			continue
		}
		if h.pipe.InFlight(filename) {
			results = append(results, uploadResult{filename, "rejected", "file is currently being processed"})
			continue
		}

		dest := filepath.Join(h.intakeDir, filename)
		if _, err := os.Stat(dest); err == nil {
			filename = suffixed(h.intakeDir, filename)
			dest = filepath.Join(h.intakeDir, filename)
		}

		if err := c.SaveUploadedFile(file, dest); err != nil {
			results = append(results, uploadResult{filename, "failed", "failed to save upload"})
			continue
		}
		if err := h.pipe.Submit(dest); err != nil {
			os.Remove(dest)
			results = append(results, uploadResult{filename, "rejected", "processing queue is full"})
			continue
		}

		log.WithField("filename", filename).Info("Upload accepted")
		results = append(results, uploadResult{Filename: filename, Status: "queued"})
		queued++
	}

	status := http.StatusAccepted
	if queued == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"queued": queued, "results": results})
}

// suffixed finds a free filename by appending _1, _2, ... before the
// extension, mirroring how the pipeline archives name collisions.
func suffixed(dir, filename string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
}

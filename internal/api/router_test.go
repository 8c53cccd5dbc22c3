package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jordanw/callscope/internal/analytics"
	"github.com/jordanw/callscope/internal/classify"
	"github.com/jordanw/callscope/internal/config"
	"github.com/jordanw/callscope/internal/domain"
	"github.com/jordanw/callscope/internal/logger"
	"github.com/jordanw/callscope/internal/pipeline"
	"github.com/jordanw/callscope/internal/store"
	"github.com/jordanw/callscope/internal/transcribe"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (*transcribe.Result, error) {
	return &transcribe.Result{Transcript: "hello", SpeakerCount: 1, DurationSeconds: 1}, nil
}

type stubClassifier struct{}

func (stubClassifier) Analyze(ctx context.Context, transcription string) (*classify.Analysis, error) {
	return &classify.Analysis{Summary: "s", Intent: "OTHER", SubIntent: "GENERAL_INQUIRY", State: classify.FullyParsed}, nil
}

func (stubClassifier) ClassifyDisposition(ctx context.Context, transcription, summary string) (*classify.Disposition, error) {
	return &classify.Disposition{Primary: "OTHER", Secondary: "OTHER"}, nil
}

type testServer struct {
	router *gin.Engine
	st     store.Store
	pipe   *pipeline.Pipeline
	intake string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.OpenCSV(filepath.Join(t.TempDir(), "records.csv"))
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.Mode = "test"
	cfg.Server.CORS.AllowAllOrigins = true
	cfg.Paths.IntakeDir = t.TempDir()
	cfg.Paths.ProcessedDir = t.TempDir()
	cfg.Deepgram.APIKey = "test-key"
	cfg.OpenAI.APIKey = "test-key"
	cfg.Processing = config.ProcessingConfig{
		Workers: 1, QueueSize: 10, MaxRetries: 1,
		RetryDelay: time.Millisecond, MaxFileSizeMB: 10,
	}

	log := logger.New(&logger.Config{Level: "error", Format: "text", Output: os.Stderr})
	pipe := pipeline.New(&cfg.Processing, t.TempDir(), st, stubTranscriber{}, stubClassifier{}, log)

	router := SetupRouter(Deps{
		Config:   cfg,
		Store:    st,
		Pipeline: pipe,
		Engine:   analytics.New(st),
		Logger:   log,
	})

	return &testServer{router: router, st: st, pipe: pipe, intake: cfg.Paths.IntakeDir}
}

func (s *testServer) seed(t *testing.T, recs ...domain.CallRecord) {
	t.Helper()
	for i := range recs {
		if err := s.st.Upsert(context.Background(), &recs[i]); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
}

func (s *testServer) do(t *testing.T, method, target string, body *bytes.Buffer) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

func record(filename, intent string, status domain.RecordStatus) domain.CallRecord {
	return domain.CallRecord{
		Filename:      filename,
		Timestamp:     time.Now(),
		Status:        status,
		Intent:        intent,
		Transcription: "customer needs a " + strings.ToLower(intent) + " quote",
	}
}

func TestListRecords(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a.mp3", "ROOFING", domain.StatusCompleted),
		record("b.mp3", "HVAC", domain.StatusCompleted),
		record("c.mp3", "", domain.StatusFailed),
	)

	w := s.do(t, http.MethodGet, "/api/v1/records", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["total"].(float64) != 3 {
		t.Errorf("total = %v", body["total"])
	}

	w = s.do(t, http.MethodGet, "/api/v1/records?status=failed", nil)
	body = decode(t, w)
	if body["total"].(float64) != 1 {
		t.Errorf("failed total = %v", body["total"])
	}
}

func TestGetRecord(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, record("a.mp3", "ROOFING", domain.StatusCompleted))

	w := s.do(t, http.MethodGet, "/api/v1/records/a.mp3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["filename"] != "a.mp3" || body["intent"] != "ROOFING" {
		t.Errorf("body = %v", body)
	}

	w = s.do(t, http.MethodGet, "/api/v1/records/missing.mp3", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", w.Code)
	}
}

func TestLatestRecords(t *testing.T) {
	s := newTestServer(t)
	now := time.Now()
	for i, name := range []string{"old.mp3", "mid.mp3", "new.mp3"} {
		r := record(name, "OTHER", domain.StatusCompleted)
		r.Timestamp = now.Add(time.Duration(i) * time.Hour)
		s.seed(t, r)
	}

	w := s.do(t, http.MethodGet, "/api/v1/records/latest/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	records := body["records"].([]interface{})
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	first := records[0].(map[string]interface{})
	if first["filename"] != "new.mp3" {
		t.Errorf("first = %v, want new.mp3", first["filename"])
	}

	w = s.do(t, http.MethodGet, "/api/v1/records/latest/zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad count status = %d, want 400", w.Code)
	}
}

func TestSearchRecords(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a.mp3", "ROOFING", domain.StatusCompleted),
		record("b.mp3", "HVAC", domain.StatusCompleted),
	)

	w := s.do(t, http.MethodGet, "/api/v1/search?q=roofing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["total"].(float64) != 1 {
		t.Errorf("total = %v", body["total"])
	}

	w = s.do(t, http.MethodGet, "/api/v1/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d, want 400", w.Code)
	}
}

func TestDeleteRecord(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, record("a.mp3", "OTHER", domain.StatusCompleted))

	w := s.do(t, http.MethodDelete, "/api/v1/records/a.mp3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	w = s.do(t, http.MethodDelete, "/api/v1/records/a.mp3", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestReprocessNotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/records/missing.mp3/reprocess", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a.mp3", "OTHER", domain.StatusCompleted),
		record("b.mp3", "OTHER", domain.StatusFailed),
	)

	w := s.do(t, http.MethodGet, "/api/v1/stats", nil)
	body := decode(t, w)
	if body["total"].(float64) != 2 || body["completed"].(float64) != 1 || body["failed"].(float64) != 1 {
		t.Errorf("stats = %v", body)
	}
}

func TestAnalyticsOverview(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, record("a.mp3", "ROOFING", domain.StatusCompleted))

	w := s.do(t, http.MethodGet, "/api/v1/analytics/overview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["total_calls"].(float64) != 1 {
		t.Errorf("total_calls = %v", body["total_calls"])
	}
}

func TestAnalyticsIntents(t *testing.T) {
	s := newTestServer(t)
	s.seed(t,
		record("a.mp3", "ROOFING", domain.StatusCompleted),
		record("b.mp3", "ROOFING", domain.StatusCompleted),
	)

	w := s.do(t, http.MethodGet, "/api/v1/analytics/intents", nil)
	body := decode(t, w)
	buckets := body["buckets"].([]interface{})
	if len(buckets) != 1 {
		t.Fatalf("buckets = %v", buckets)
	}
	top := buckets[0].(map[string]interface{})
	if top["label"] != "ROOFING" || top["count"].(float64) != 2 {
		t.Errorf("top bucket = %v", top)
	}
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, record("a.mp3", "ROOFING", domain.StatusCompleted))

	w := s.do(t, http.MethodGet, "/api/v1/export?format=csv", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "timestamp,filename,") {
		t.Errorf("header = %s", lines[0])
	}
}

func TestExportBadFormat(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/export?format=pdf", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestExportXLSX(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, record("a.mp3", "ROOFING", domain.StatusCompleted))

	w := s.do(t, http.MethodGet, "/api/v1/export?format=xlsx", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("response is not a zip archive")
	}
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	s.pipe.Start(context.Background())
	defer s.pipe.Stop()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", "upload.mp3")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("fake-audio"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// The upload eventually lands in the store as a completed record.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := s.st.Get(context.Background(), "upload.mp3")
		if err == nil && rec.Status == domain.StatusCompleted {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("uploaded file never reached completed status")
}

func TestUploadCollisionGetsSuffix(t *testing.T) {
	s := newTestServer(t)

	// A same-named file already sits in the intake dir.
	if err := os.WriteFile(filepath.Join(s.intake, "clash.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, _ := mw.CreateFormFile("file", "clash.mp3")
	fw.Write([]byte("fake-audio"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	results := resp["results"].([]interface{})
	first := results[0].(map[string]interface{})
	if first["filename"] != "clash_1.mp3" {
		t.Errorf("filename = %v, want clash_1.mp3", first["filename"])
	}
}

func TestUploadRejectsNonAudio(t *testing.T) {
	s := newTestServer(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("text"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRemoteDisabled(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{"/api/v1/remote/recordings", "/api/v1/remote/stats"} {
		w := s.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", target, w.Code)
		}
	}
	w := s.do(t, http.MethodPost, "/api/v1/remote/sync", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("sync status = %d, want 503", w.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("health = %v", body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

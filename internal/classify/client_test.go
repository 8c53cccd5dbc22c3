package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jordanw/callscope/internal/adapter"
)

func chatHandler(t *testing.T, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["model"] != "gpt-4o-mini" {
			t.Errorf("model = %v, want gpt-4o-mini", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": content}},
			},
		})
	}
}

func newTestClient(url string) *Client {
	return New(&Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func TestAnalyzeFullyParsed(t *testing.T) {
	content := `{"summary": "Customer called about roof leak repair", "intent": "ROOFING", "sub_intent": "ROOF_REPAIR"}`
	srv := httptest.NewServer(chatHandler(t, content))
	defer srv.Close()

	c := newTestClient(srv.URL)
	a, err := c.Analyze(context.Background(), "my roof is leaking")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.State != FullyParsed {
		t.Errorf("State = %v, want FullyParsed", a.State)
	}
	if a.Intent != "ROOFING" || a.SubIntent != "ROOF_REPAIR" {
		t.Errorf("got intent %q sub-intent %q", a.Intent, a.SubIntent)
	}
	if a.Summary != "Customer called about roof leak repair" {
		t.Errorf("Summary = %q", a.Summary)
	}
}

func TestAnalyzeJSONEmbeddedInProse(t *testing.T) {
	content := "Sure, here is the analysis:\n" +
		`{"summary": "HVAC maintenance request", "intent": "HVAC", "sub_intent": "MAINTENANCE_SERVICE"}` +
		"\nLet me know if you need anything else."
	srv := httptest.NewServer(chatHandler(t, content))
	defer srv.Close()

	c := newTestClient(srv.URL)
	a, err := c.Analyze(context.Background(), "need a tune up")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.State != FullyParsed {
		t.Errorf("State = %v, want FullyParsed", a.State)
	}
	if a.Intent != "HVAC" {
		t.Errorf("Intent = %q, want HVAC", a.Intent)
	}
}

func TestAnalyzeInvalidIntentCoerced(t *testing.T) {
	content := `{"summary": "Something odd", "intent": "LANDSCAPING", "sub_intent": "LAWN_CARE"}`
	srv := httptest.NewServer(chatHandler(t, content))
	defer srv.Close()

	c := newTestClient(srv.URL)
	a, err := c.Analyze(context.Background(), "mow my lawn")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.Intent != "OTHER" {
		t.Errorf("Intent = %q, want OTHER", a.Intent)
	}
}

func TestAnalyzePartiallyParsed(t *testing.T) {
	content := "summary: Customer asked about pricing for gutters\nintent: ROOFING\nsub_intent: GUTTER_REPAIR"
	srv := httptest.NewServer(chatHandler(t, content))
	defer srv.Close()

	c := newTestClient(srv.URL)
	a, err := c.Analyze(context.Background(), "gutters are sagging")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.State != PartiallyParsed {
		t.Errorf("State = %v, want PartiallyParsed", a.State)
	}
	if a.Intent != "ROOFING" || a.SubIntent != "GUTTER_REPAIR" {
		t.Errorf("got intent %q sub-intent %q", a.Intent, a.SubIntent)
	}
}

func TestAnalyzeUnparsedDefaults(t *testing.T) {
	content := "The customer seemed interested in home improvement generally. Nothing specific stood out."
	srv := httptest.NewServer(chatHandler(t, content))
	defer srv.Close()

	c := newTestClient(srv.URL)
	a, err := c.Analyze(context.Background(), "hello hello can you hear me")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if a.State != Unparsed {
		t.Errorf("State = %v, want Unparsed", a.State)
	}
	if a.Intent != "OTHER" {
		t.Errorf("Intent = %q, want OTHER", a.Intent)
	}
	if !strings.HasPrefix(a.Summary, "The customer seemed interested") {
		t.Errorf("Summary = %q, want first sentence of content", a.Summary)
	}
}

func TestAnalyzeTruncatesLongTranscript(t *testing.T) {
	var gotPromptLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotPromptLen = len(req.Messages[1].Content)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"summary\":\"long call\",\"intent\":\"OTHER\",\"sub_intent\":\"GENERAL_INQUIRY\"}"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	long := strings.Repeat("word ", 10000)
	if _, err := c.Analyze(context.Background(), long); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if gotPromptLen > maxTranscriptChars+3000 {
		t.Errorf("prompt length %d, transcript was not truncated", gotPromptLen)
	}
}

func TestAnalyzeErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"message":"nope","type":"api_error"}}`))
		}))

		c := newTestClient(srv.URL)
		_, err := c.Analyze(context.Background(), "transcript")
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if got := adapter.IsRetryable(err); got != tt.retryable {
			t.Errorf("status %d: IsRetryable = %v, want %v", tt.status, got, tt.retryable)
		}
	}
}

func TestClassifyDisposition(t *testing.T) {
	srv := httptest.NewServer(chatHandler(t, "APPOINTMENT_SET|IMMEDIATE"))
	defer srv.Close()

	c := newTestClient(srv.URL)
	d, err := c.ClassifyDisposition(context.Background(), "let's book it for tuesday", "Customer booked an appointment")
	if err != nil {
		t.Fatalf("ClassifyDisposition() error = %v", err)
	}
	if d.Primary != "APPOINTMENT_SET" || d.Secondary != "IMMEDIATE" {
		t.Errorf("got %q|%q", d.Primary, d.Secondary)
	}
}

func TestClassifyDispositionMalformed(t *testing.T) {
	srv := httptest.NewServer(chatHandler(t, "the lead seemed promising"))
	defer srv.Close()

	c := newTestClient(srv.URL)
	d, err := c.ClassifyDisposition(context.Background(), "transcript", "")
	if err != nil {
		t.Fatalf("ClassifyDisposition() error = %v", err)
	}
	if d.Primary != "OTHER" || d.Secondary != "CLASSIFICATION_ERROR" {
		t.Errorf("got %q|%q, want OTHER|CLASSIFICATION_ERROR", d.Primary, d.Secondary)
	}
}

func TestClassifySubIntentKeywords(t *testing.T) {
	tests := []struct {
		intent  string
		summary string
		want    string
	}{
		{"ROOFING", "Customer reported a gutter repair issue", "GUTTER_REPAIR"},
		{"ROOFING", "Roof is leaking after the storm", "ROOF_REPAIR"},
		{"PLUMBING", "Water heater stopped producing hot water", "WATER_HEATER"},
		{"HVAC", "Air conditioning not cooling", "AC_REPAIR"},
		{"QUOTE_REQUEST", "Wants an estimate for new siding", "ESTIMATE_REQUEST"},
		{"ROOFING", "No matching words here", "ROOF_REPAIR"},
		{"UNKNOWN_INTENT", "anything", "GENERAL_INQUIRY"},
		{"OTHER", "This was a test call to be ready", "TEST_CALL"},
	}
	for _, tt := range tests {
		if got := ClassifySubIntent(tt.intent, tt.summary); got != tt.want {
			t.Errorf("ClassifySubIntent(%q, %q) = %q, want %q", tt.intent, tt.summary, got, tt.want)
		}
	}
}

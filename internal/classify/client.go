// Package classify wraps the OpenAI chat completions API for call analysis:
// intent/sub-intent extraction from transcripts and lead disposition
// classification. Model output is validated against the closed taxonomies in
// the prompts package; unparseable output degrades rather than fails.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jordanw/callscope/internal/adapter"
	"github.com/jordanw/callscope/internal/prompts"
)

// Transcripts longer than this are truncated before prompting.
const maxTranscriptChars = 15000

// ParseState describes how much of the model output survived parsing.
type ParseState int

const (
	// FullyParsed means the model returned valid JSON with all fields.
	FullyParsed ParseState = iota
	// PartiallyParsed means structured fields were recovered from a
	// non-JSON response.
	PartiallyParsed
	// Unparsed means nothing usable came back and defaults were applied.
	Unparsed
)

func (s ParseState) String() string {
	switch s {
	case FullyParsed:
		return "fully_parsed"
	case PartiallyParsed:
		return "partially_parsed"
	default:
		return "unparsed"
	}
}

// Analysis is the outcome of intent classification.
type Analysis struct {
	Summary   string
	Intent    string
	SubIntent string
	State     ParseState
}

// Disposition is the outcome of lead disposition classification.
type Disposition struct {
	Primary   string
	Secondary string
}

// Client is the classification adapter.
type Client struct {
	client   *resty.Client
	endpoint string
	model    string
}

// Config holds configuration for the classification client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New creates a classification client.
// Parameters:
//   - cfg: API key, base URL, model, and request timeout.
// Returns:
//   - *Client: initialized client wrapper.
func New(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Client{
		client:   client,
		endpoint: strings.TrimSuffix(baseURL, "/") + "/chat/completions",
		model:    model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Analyze classifies a transcription into summary, intent, and sub-intent.
// Vendor and transport failures return tagged errors; a reachable model that
// produces garbage degrades to a partial or default Analysis instead.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - transcription: full call transcript.
// Returns:
//   - *Analysis: classification with its parse state.
//   - error: tagged adapter error when the vendor could not be reached.
func (c *Client) Analyze(ctx context.Context, transcription string) (*Analysis, error) {
	if len(transcription) > maxTranscriptChars {
		transcription = transcription[:maxTranscriptChars] + "... [truncated]"
	}

	content, err := c.complete(ctx, prompts.IntentSystemPrompt,
		fmt.Sprintf(prompts.IntentUserPrompt, transcription), 300)
	if err != nil {
		return nil, err
	}

	analysis := parseAnalysis(content)
	if analysis.SubIntent == "" || analysis.SubIntent == "GENERAL_INQUIRY" || analysis.SubIntent == "GENERAL" {
		analysis.SubIntent = ClassifySubIntent(analysis.Intent, analysis.Summary)
	}
	return analysis, nil
}

// ClassifyDisposition classifies a call into primary and secondary lead
// dispositions. Malformed model output degrades to OTHER/CLASSIFICATION_ERROR.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - transcription: full call transcript.
//   - summary: call summary from a prior Analyze, may be empty.
// Returns:
//   - *Disposition: primary and secondary disposition labels.
//   - error: tagged adapter error when the vendor could not be reached.
func (c *Client) ClassifyDisposition(ctx context.Context, transcription, summary string) (*Disposition, error) {
	callContent := transcription
	if len(callContent) > maxTranscriptChars {
		callContent = callContent[:maxTranscriptChars] + "... [truncated]"
	}
	if summary != "" {
		callContent = callContent + "\n\nSummary: " + summary
	}

	content, err := c.complete(ctx, prompts.DispositionSystemPrompt,
		fmt.Sprintf(prompts.DispositionUserPrompt, callContent), 50)
	if err != nil {
		return nil, err
	}

	primary, secondary, ok := strings.Cut(strings.TrimSpace(content), "|")
	if !ok {
		return &Disposition{Primary: "OTHER", Secondary: "CLASSIFICATION_ERROR"}, nil
	}
	return &Disposition{
		Primary:   strings.ToUpper(strings.TrimSpace(primary)),
		Secondary: strings.ToUpper(strings.TrimSpace(secondary)),
	}, nil
}

// complete runs a single chat completion and returns the message content.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(&chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			MaxTokens:   maxTokens,
			Temperature: 0.1,
		}).
		SetResult(&resp).
		SetError(&resp).
		Post(c.endpoint)

	if err != nil {
		return "", adapter.Retryablef("classification request failed: %v", err)
	}

	if code := httpResp.StatusCode(); code < 200 || code >= 300 {
		msg := string(httpResp.Body())
		if resp.Error != nil {
			msg = resp.Error.Message
		}
		if adapter.RetryableStatus(code) {
			return "", adapter.Retryablef("classification API returned HTTP %d: %s", code, msg)
		}
		return "", adapter.Fatalf("classification API returned HTTP %d: %s", code, msg)
	}

	if len(resp.Choices) == 0 {
		return "", adapter.Retryablef("no choices in classification response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

type analysisJSON struct {
	Summary   string `json:"summary"`
	Intent    string `json:"intent"`
	SubIntent string `json:"sub_intent"`
}

// parseAnalysis turns raw model output into an Analysis. It first looks for
// a JSON object anywhere in the content, then falls back to line-oriented
// "field: value" extraction, then to defaults.
func parseAnalysis(content string) *Analysis {
	jsonStr := content
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start != -1 && end > start {
		jsonStr = content[start : end+1]
	}

	var parsed analysisJSON
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err == nil && parsed.Summary != "" && parsed.Intent != "" {
		intent := strings.ToUpper(strings.TrimSpace(parsed.Intent))
		if !prompts.IsValidIntent(intent) {
			intent = "OTHER"
		}
		return &Analysis{
			Summary:   clampSummary(parsed.Summary),
			Intent:    intent,
			SubIntent: strings.ToUpper(strings.TrimSpace(parsed.SubIntent)),
			State:     FullyParsed,
		}
	}

	return parseAnalysisText(content)
}

// parseAnalysisText recovers fields from a non-JSON response.
func parseAnalysisText(content string) *Analysis {
	analysis := &Analysis{
		Summary:   "Call analysis completed",
		Intent:    "OTHER",
		SubIntent: "GENERAL_INQUIRY",
		State:     Unparsed,
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		switch {
		case strings.Contains(lower, "summary"):
			analysis.Summary = clampSummary(value)
			analysis.State = PartiallyParsed
		case strings.Contains(lower, "sub_intent"):
			analysis.SubIntent = strings.ToUpper(value)
			analysis.State = PartiallyParsed
		case strings.Contains(lower, "intent"):
			if intent := strings.ToUpper(value); prompts.IsValidIntent(intent) {
				analysis.Intent = intent
				analysis.State = PartiallyParsed
			}
		}
	}

	// Nothing structured found: use the first sentence as the summary.
	if analysis.State == Unparsed && strings.TrimSpace(content) != "" {
		first, _, _ := strings.Cut(content, ". ")
		first = strings.TrimSpace(first)
		if first != "" {
			if !strings.HasSuffix(first, ".") {
				first += "."
			}
			if len(first) > 200 {
				first = first[:200]
			}
			analysis.Summary = first
		}
	}

	return analysis
}

func clampSummary(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 500 {
		return s[:500]
	}
	return s
}

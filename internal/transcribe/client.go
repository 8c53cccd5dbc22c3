// Package transcribe wraps the Deepgram speech-to-text API. One call in,
// one typed result or tagged error out; retry policy belongs to the caller.
package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jordanw/callscope/internal/adapter"
)

// Client is the transcription adapter.
type Client struct {
	client   *resty.Client
	endpoint string
	model    string
}

// Config holds configuration for the transcription client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Result is a completed transcription.
type Result struct {
	Transcript         string
	DiarizedTranscript string
	SpeakerCount       int
	DurationSeconds    float64
	Confidence         float64
}

// New creates a transcription client.
// Parameters:
//   - cfg: API key, base URL, model, and request timeout.
// Returns:
//   - *Client: initialized client wrapper.
func New(cfg *Config) *Client {
	client := resty.New()
	client.SetHeader("Authorization", "Token "+cfg.APIKey)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.deepgram.com"
	}
	model := cfg.Model
	if model == "" {
		model = "nova"
	}

	return &Client{
		client:   client,
		endpoint: strings.TrimSuffix(baseURL, "/") + "/v1/listen",
		model:    model,
	}
}

// Deepgram pre-recorded response structures (the subset we read).
type dgResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word    string `json:"word"`
					Speaker int    `json:"speaker"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Speaker    int    `json:"speaker"`
			Transcript string `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
	ErrMsg string `json:"err_msg"`
}

// Transcribe submits audio bytes and returns the transcription result.
// Errors are tagged for the pipeline's retry policy: timeouts, rate limits,
// and server errors are retryable; client errors are fatal.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - audio: raw audio bytes.
//   - filename: source filename, used only to pick the MIME type.
// Returns:
//   - *Result: transcript, speaker-tagged transcript, speaker count, duration.
//   - error: tagged adapter error on failure.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (*Result, error) {
	if len(audio) == 0 {
		return nil, adapter.Fatalf("empty audio payload for %s", filename)
	}

	var resp dgResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", mimeType(filename)).
		SetQueryParams(map[string]string{
			"model":        c.model,
			"language":     "en-US",
			"punctuate":    "true",
			"smart_format": "true",
			"diarize":      "true",
			"utterances":   "true",
		}).
		SetBody(audio).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return nil, adapter.Retryablef("transcription request failed: %v", err)
	}

	if code := httpResp.StatusCode(); code < 200 || code >= 300 {
		msg := resp.ErrMsg
		if msg == "" {
			msg = string(httpResp.Body())
		}
		if adapter.RetryableStatus(code) {
			return nil, adapter.Retryablef("transcription API returned HTTP %d: %s", code, msg)
		}
		return nil, adapter.Fatalf("transcription API returned HTTP %d: %s", code, msg)
	}

	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, adapter.Retryablef("no transcription results in response")
	}

	alt := resp.Results.Channels[0].Alternatives[0]

	diarized, speakers := diarize(&resp)

	return &Result{
		Transcript:         strings.TrimSpace(alt.Transcript),
		DiarizedTranscript: diarized,
		SpeakerCount:       speakers,
		DurationSeconds:    resp.Metadata.Duration,
		Confidence:         alt.Confidence,
	}, nil
}

// diarize builds "Speaker N: ..." lines from utterances when present,
// falling back to grouping word runs by speaker.
func diarize(resp *dgResponse) (string, int) {
	speakers := map[int]struct{}{}

	if len(resp.Results.Utterances) > 0 {
		var lines []string
		for _, u := range resp.Results.Utterances {
			text := strings.TrimSpace(u.Transcript)
			if text == "" {
				continue
			}
			speakers[u.Speaker] = struct{}{}
			lines = append(lines, fmt.Sprintf("Speaker %d: %s", u.Speaker+1, text))
		}
		return strings.Join(lines, "\n"), countSpeakers(speakers)
	}

	// Word-level fallback: emit a line per consecutive same-speaker run.
	if len(resp.Results.Channels) > 0 && len(resp.Results.Channels[0].Alternatives) > 0 {
		words := resp.Results.Channels[0].Alternatives[0].Words
		if len(words) > 0 {
			var lines []string
			current := words[0].Speaker
			var run []string
			for _, w := range words {
				speakers[w.Speaker] = struct{}{}
				if w.Speaker != current {
					lines = append(lines, fmt.Sprintf("Speaker %d: %s", current+1, strings.Join(run, " ")))
					current = w.Speaker
					run = run[:0]
				}
				run = append(run, w.Word)
			}
			if len(run) > 0 {
				lines = append(lines, fmt.Sprintf("Speaker %d: %s", current+1, strings.Join(run, " ")))
			}
			return strings.Join(lines, "\n"), countSpeakers(speakers)
		}
	}

	return "", 1
}

func countSpeakers(set map[int]struct{}) int {
	if len(set) == 0 {
		return 1
	}
	return len(set)
}

func mimeType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

// Package analyzer turns collected review texts into a structured summary
// using the Gemini generateContent API.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maltedev/review-analyzer/internal/httpx"
	"github.com/maltedev/review-analyzer/internal/models"
)

const (
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1"
	DefaultModel       = "gemini-2.5-flash-lite"
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second
)

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
	MaxChars    int
}

func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		BaseURL:     DefaultBaseURL,
		Temperature: DefaultTemperature,
		Timeout:     DefaultTimeout,
		MaxChars:    DefaultMaxChars,
	}
}

type Client struct {
	cfg    Config
	http   *httpx.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaults.MaxChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpx.NewClient(cfg.Timeout, map[string]string{"Accept": "application/json"}),
		logger: logger.With("component", "analyzer", "model", cfg.Model),
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Analyze submits the reviews in one completion request and normalizes the
// answer. Failures are returned as *Error.
func (c *Client) Analyze(ctx context.Context, reviews []string) (*models.Summary, error) {
	if len(reviews) == 0 {
		return nil, &Error{Kind: KindEmptyInput, Message: "no reviews to analyze"}
	}
	if c.cfg.APIKey == "" {
		return nil, &Error{Kind: KindConfig, Message: "GEMINI_API_KEY is not set"}
	}

	text, truncated := Combine(reviews, c.cfg.MaxChars)
	c.logger.Info("requesting analysis",
		"reviews", len(reviews), "chars", utf8.RuneCountInString(text), "truncated", truncated)

	req := generateRequest{
		Contents:         []content{{Parts: []part{{Text: BuildPrompt(text)}}}},
		GenerationConfig: generationConfig{Temperature: c.cfg.Temperature},
	}

	var resp generateResponse
	if err := c.http.PostJSON(ctx, c.endpoint(), req, map[string]string{"x-goog-api-key": c.cfg.APIKey}, &resp); err != nil {
		ae := classifyTransport(err)
		if ae.Quota {
			c.logger.Error("analysis quota exceeded", "status", ae.StatusCode, "details", string(ae.Details))
		} else {
			c.logger.Error("analysis request failed", "status", ae.StatusCode, "error", ae.Message, "details", string(ae.Details))
		}
		return nil, ae
	}

	output, err := responseText(&resp)
	if err != nil {
		c.logger.Error("empty model response", "error", err)
		return nil, &Error{Kind: KindParse, Message: err.Error(), Err: err}
	}

	summary, err := ParseSummary(output)
	if err != nil {
		c.logger.Error("failed to parse model output", "error", err, "output", truncateForLog(output, 200))
		return nil, &Error{Kind: KindParse, Message: "failed to parse model output as JSON", RawResponse: output, Err: err}
	}

	summary.TotalReviews = len(reviews)
	c.logger.Info("analysis complete", "reviews", len(reviews), "pros", len(summary.Pros), "cons", len(summary.Cons))
	return summary, nil
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.Model)
}

func responseText(resp *generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("response has no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("response has no text (finish reason %q)", resp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}

// ParseSummary extracts the JSON object from model output and maps it onto a
// Summary. Values of unexpected types are converted to text instead of
// failing the analysis.
func ParseSummary(output string) (*models.Summary, error) {
	raw, err := ExtractJSON(output)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	s := &models.Summary{
		Pros:           stringList(fields["pros"]),
		Cons:           stringList(fields["cons"]),
		SentimentRatio: stringValue(fields["ratio"]),
		Summary:        stringValue(fields["summary"]),
		SizeNote:       stringValue(fields["size"]),
		Recommendation: stringValue(fields["recommendation"]),
	}
	s.Normalize()
	return s, nil
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(stringValue(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return nil
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func truncateForLog(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

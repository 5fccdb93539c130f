// Package httpx holds the outbound HTTP plumbing shared by the API-backed
// extractors and the analysis client.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

	// Responses larger than this are cut off when read.
	maxBodyBytes = 8 << 20

	errorBodyRunes = 200
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if utf8.RuneCountInString(body) > errorBodyRunes {
		body = string([]rune(body)[:errorBodyRunes]) + "..."
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, body)
}

// Client wraps http.Client with default browser-like headers.
type Client struct {
	http    *http.Client
	headers map[string]string
}

func NewClient(timeout time.Duration, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	merged := DefaultHeaders()
	for k, v := range headers {
		merged[k] = v
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		headers: merged,
	}
}

// DefaultHeaders mimics a desktop Chrome issuing XHR requests from a Korean locale.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
		"User-Agent":      DefaultUserAgent,
	}
}

// GetJSON issues a GET with query parameters and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query map[string]string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	return c.do(req, headers, out)
}

// PostJSON marshals body, POSTs it and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, headers, out)
}

func (c *Client) do(req *http.Request, headers map[string]string, out any) error {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: body, URL: req.URL.Redacted()}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

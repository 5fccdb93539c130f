package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/maltedev/review-analyzer/internal/httpx"
	"github.com/maltedev/review-analyzer/internal/models"
)

type Kind string

const (
	// KindTransport covers timeouts, connection errors and non-2xx responses.
	KindTransport Kind = "transport"
	// KindParse means the model answered but no JSON object could be read.
	KindParse Kind = "parse"
	// KindConfig means the client is not usable, e.g. no API key.
	KindConfig Kind = "config"
	// KindEmptyInput is returned for an empty review list; no request is made.
	KindEmptyInput Kind = "empty_input"
)

// Error is the failure branch of an analysis.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	// Quota is set when the provider rejected the call for rate or quota
	// reasons rather than a generic failure.
	Quota bool
	// Details is the provider's error payload, unchanged.
	Details json.RawMessage
	// RawResponse is the model text that could not be parsed.
	RawResponse string
	Err         error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("analysis %s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Failure converts the error into the payload returned to API clients.
func (e *Error) Failure() models.AnalysisFailure {
	return models.AnalysisFailure{
		Error:       e.Message,
		Kind:        string(e.Kind),
		StatusCode:  e.StatusCode,
		Quota:       e.Quota,
		Details:     e.Details,
		RawResponse: e.RawResponse,
	}
}

// IsQuota reports whether err is an analysis error caused by provider quota.
func IsQuota(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Quota
}

// providerError is the error envelope of the generative language API.
type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func classifyTransport(err error) *Error {
	var se *httpx.StatusError
	if !errors.As(err, &se) {
		return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
	}

	ae := &Error{
		Kind:       KindTransport,
		StatusCode: se.StatusCode,
		Message:    http.StatusText(se.StatusCode),
		Details:    rawDetails(se.Body),
		Err:        err,
	}

	var pe providerError
	if json.Unmarshal(se.Body, &pe) == nil {
		if pe.Error.Message != "" {
			ae.Message = pe.Error.Message
		}
		if strings.EqualFold(pe.Error.Status, "RESOURCE_EXHAUSTED") {
			ae.Quota = true
		}
	}
	if se.StatusCode == http.StatusTooManyRequests {
		ae.Quota = true
	}
	if ae.Message == "" {
		ae.Message = fmt.Sprintf("unexpected status %d", se.StatusCode)
	}

	return ae
}

func rawDetails(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

package models

import "encoding/json"

// AnalysisFailure is the failure branch of an analysis as exposed to API
// clients. Details carries the provider's error payload unchanged.
type AnalysisFailure struct {
	Error       string          `json:"error"`
	Kind        string          `json:"kind,omitempty"`
	StatusCode  int             `json:"statusCode,omitempty"`
	Quota       bool            `json:"quota,omitempty"`
	Details     json.RawMessage `json:"details,omitempty"`
	RawResponse string          `json:"raw_response,omitempty"`
}

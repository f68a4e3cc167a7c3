package model

import (
	"time"
)

// Request represents an issued request as kept in history
type Request struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Response  *Response         `json:"response,omitempty"`
}

// Response represents the raw response of a history entry
type Response struct {
	StatusCode int               `json:"status_code"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	DurationMs int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
}

// History represents the request history storage
type History struct {
	Requests []Request `json:"requests"`
}

// Properties represents the string key/value store
type Properties struct {
	Values map[string]string `json:"values"`
}

// Package api holds the request and response bodies of the viewer API and
// its JSON error envelope.
package api

import (
	"encoding/json"
	"net/http"

	"news-reader/internal/services/extraction"
	"news-reader/internal/services/feedback"
)

// MaxArticles bounds one extraction request.
const MaxArticles = 20

// ExtractRequest represents an article extraction request
type ExtractRequest struct {
	Articles []string `json:"articles"`
}

// ExtractResponse holds one result per article, null where extraction failed,
// and the trace id of every article.
type ExtractResponse struct {
	Results  []*extraction.ArticleInfo `json:"results"`
	TraceIDs []string                  `json:"trace_ids"`
}

// FeedbackRequest represents a vote on one displayed result
type FeedbackRequest struct {
	Feedback  string          `json:"feedback"`
	ResultKey string          `json:"result_key"`
	TraceID   string          `json:"trace_id"`
	UserName  string          `json:"user_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type FeedbackListResponse struct {
	Feedback []feedback.Event `json:"feedback"`
}

type EntriesResponse struct {
	Entries []feedback.Entry `json:"entries"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeInternal    = "INTERNAL_ERROR"
	ErrCodeRateLimit   = "RATE_LIMIT"
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeUnavailable = "UNAVAILABLE"
)

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, NewErrorResponse(code, message))
}

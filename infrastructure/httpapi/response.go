package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// Error codes returned in the error envelope.
const (
	ErrCodeInvalidQuery = "invalid_query"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"
	ErrCodeBadRequest   = "bad_request"
)

// ResponseMeta accompanies every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// APIResponse is the success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Suggestions lists close agent IDs for not-found lookups.
	Suggestions []string `json:"suggestions,omitempty"`
}

// APIError is the error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

func meta(r *http.Request) ResponseMeta {
	return ResponseMeta{
		RequestID: RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// writeJSON writes a JSON response with the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Data: data, Meta: meta(r)})
}

// writeError writes a JSON error response with the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, detail ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{Error: detail, Meta: meta(r)})
}

// statusForError maps service errors to HTTP status codes and envelope details.
func statusForError(err error) (int, ErrorDetail) {
	var (
		notFound   *domain.NotFoundError
		validation *domain.ValidationError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, ErrorDetail{Code: ErrCodeInvalidQuery, Message: validation.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, ErrorDetail{
			Code:        ErrCodeNotFound,
			Message:     notFound.Error(),
			Suggestions: notFound.Suggestions,
		}
	case errors.Is(err, ports.ErrServiceUnavailable), errors.Is(err, ports.ErrTimeout):
		return http.StatusServiceUnavailable, ErrorDetail{Code: ErrCodeUnavailable, Message: "agent metrics are temporarily unavailable"}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: ErrCodeInternal, Message: "internal server error"}
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ekodi-ai/gatekeeper/internal/core/domain"
	"github.com/ekodi-ai/gatekeeper/internal/telemetry/logger"
)

// Response is the standard API response envelope.
// All JSON responses use it except /metrics and overload rejections.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// RequestID returns the id assigned by the RequestID middleware.
func RequestID(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}

// WriteJSON writes data in the success envelope.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, NewResponse(RequestID(r), data))
}

// WriteError writes an error envelope and tags the response with its code.
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	w.Header().Set("X-Error-Code", code)
	writeEnvelope(w, r, status, NewErrorResponse(RequestID(r), code, message, details))
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Default().ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// WriteDomainError maps err to its HTTP status and writes it. Errors that
// are not domain errors become a generic 500. Authentication failures never
// carry details, so every 401 and 403 reads the same.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		slog.Default().ErrorContext(r.Context(), "internal error", "error", err)
		WriteError(w, r, http.StatusInternalServerError,
			domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
		return
	}

	status := StatusForCode(de.Code)
	if status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			"code", de.Code, "details", de.Details, "error", de.Cause)
	}

	var details any
	if de.Details != "" && status < http.StatusInternalServerError && !strings.HasPrefix(de.Code, "GK-AUTH-") {
		details = de.Details
	}
	WriteError(w, r, status, de.Code, de.Message, details)
}

// StatusForCode derives the HTTP status from a GK-AREA-NNNN code: the first
// three digits of the last segment.
func StatusForCode(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 || len(code)-i-1 < 3 {
		return http.StatusInternalServerError
	}
	n, err := strconv.Atoi(code[i+1 : i+4])
	if err != nil || n < 400 || n > 599 {
		return http.StatusInternalServerError
	}
	return n
}

// SetRetryAfter sets Retry-After in whole seconds, rounding up.
func SetRetryAfter(w http.ResponseWriter, d time.Duration) {
	if d <= 0 {
		return
	}
	secs := int64((d + time.Second - 1) / time.Second)
	w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
}

// WriteRateLimited writes a 429 with the rate limit headers.
func WriteRateLimited(w http.ResponseWriter, r *http.Request, limit int, retryAfter time.Duration, err error) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	SetRetryAfter(w, retryAfter)
	WriteDomainError(w, r, err)
}

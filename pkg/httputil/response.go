package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
	"github.com/vetclinic/sitemedia/pkg/logger"
	"github.com/vetclinic/sitemedia/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// sentinelResponses maps bare sentinel errors to their wire code and message.
// Order matters: the first match wins.
var sentinelResponses = []struct {
	target  error
	code    string
	message string
	status  int
}{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found", http.StatusNotFound},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS", "resource already exists", http.StatusConflict},
	{apperrors.ErrConflict, "CONFLICT", "resource state conflict", http.StatusConflict},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", "", http.StatusBadRequest},
	{apperrors.ErrUnauthorized, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized},
	{apperrors.ErrForbidden, "FORBIDDEN", "access denied", http.StatusForbidden},
	{apperrors.ErrUnprocessable, "UNPROCESSABLE", "", http.StatusUnprocessableEntity},
	{apperrors.ErrBadGateway, "BAD_GATEWAY", "upstream dependency failed", http.StatusBadGateway},
	{apperrors.ErrServiceUnavail, "SERVICE_UNAVAILABLE", "service unavailable", http.StatusServiceUnavailable},
}

// WriteError writes a standardized error response based on the error type.
// AppErrors carry their own code and status; bare sentinels are mapped via
// sentinelResponses; anything else becomes a 500. Field details of a wrapped
// validator.ValidationError are included. Every 5xx is logged with
// the request-scoped logger when one is present, otherwise with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status, code, message = appErr.Status, appErr.Code, appErr.Message
	} else {
		for _, s := range sentinelResponses {
			if errors.Is(err, s.target) {
				status, code, message = s.status, s.code, s.message
				if message == "" {
					message = err.Error()
				}
				break
			}
		}
	}

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("code", code),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	resp := &ErrorResponse{Code: code, Message: message, RequestID: requestID}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		resp.Fields = valErr.Fields()
	}

	WriteJSON(w, status, Response{Error: resp})
}

// ParseUUID validates param as a UUID. On failure it writes a 400 with code
// INVALID_PARAMETER and returns false so the caller can return early.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid UUID: " + param,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

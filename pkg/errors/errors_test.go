package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("s3: 503 SlowDown")

	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
		message  string
	}{
		{"not found", NotFound("image", "42"), "NOT_FOUND", 404, ErrNotFound, "image with id 42 not found"},
		{"already exists", AlreadyExists("image", "path", "pets/pets-1.webp"), "ALREADY_EXISTS", 409, ErrAlreadyExists, `image with path "pets/pets-1.webp" already exists`},
		{"invalid input", InvalidInput("quality must be in [0,1]"), "INVALID_INPUT", 400, ErrInvalidInput, "quality must be in [0,1]"},
		{"unauthorized", Unauthorized("missing token"), "UNAUTHORIZED", 401, ErrUnauthorized, "missing token"},
		{"forbidden", Forbidden("admin only"), "FORBIDDEN", 403, ErrForbidden, "admin only"},
		{"conflict", Conflict("object exists"), "CONFLICT", 409, ErrConflict, "object exists"},
		{"unprocessable", Unprocessable("image could not be decoded"), "UNPROCESSABLE", 422, ErrUnprocessable, "image could not be decoded"},
		{"bad gateway", BadGateway("storage failed", cause), "BAD_GATEWAY", 502, ErrBadGateway, "storage failed"},
		{"internal", Internal(cause), "INTERNAL_ERROR", 500, nil, "an internal error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.message, tt.err.Message)
			assert.Equal(t, tt.status, HTTPStatus(fmt.Errorf("wrapped: %w", tt.err)))
			if tt.sentinel != nil {
				assert.ErrorIs(t, tt.err, tt.sentinel)
			}
		})
	}
}

func TestBadGateway_KeepsCause(t *testing.T) {
	cause := errors.New("s3: 503 SlowDown")
	err := BadGateway("storage failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "BAD_GATEWAY: storage failed: upstream failure: s3: 503 SlowDown", err.Error())
}

func TestAppError_ErrorWithoutCause(t *testing.T) {
	err := &AppError{Code: "DUPLICATE_OBJECT", Message: "pets/pets-1.webp already stored", Status: http.StatusConflict}

	assert.Equal(t, "DUPLICATE_OBJECT: pets/pets-1.webp already stored", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "get image")

	assert.Equal(t, "get image: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	tests := map[error]int{
		ErrNotFound:                     http.StatusNotFound,
		ErrAlreadyExists:                http.StatusConflict,
		ErrConflict:                     http.StatusConflict,
		ErrInvalidInput:                 http.StatusBadRequest,
		ErrUnauthorized:                 http.StatusUnauthorized,
		ErrForbidden:                    http.StatusForbidden,
		ErrUnprocessable:                http.StatusUnprocessableEntity,
		ErrBadGateway:                   http.StatusBadGateway,
		ErrServiceUnavail:               http.StatusServiceUnavailable,
		ErrInternal:                     http.StatusInternalServerError,
		errors.New("connection refused"): http.StatusInternalServerError,
	}
	for err, want := range tests {
		assert.Equal(t, want, HTTPStatus(fmt.Errorf("op: %w", err)), err.Error())
	}
}

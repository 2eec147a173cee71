package domain

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
)

// Sentinels for the image pipeline failure kinds. Every *AppError built by
// the constructors below wraps exactly one of them, so callers branch with
// errors.Is.
var (
	ErrDecode          = errors.New("image decode failed")
	ErrEncode          = errors.New("image encode failed")
	ErrUpload          = errors.New("image upload failed")
	ErrDuplicateObject = errors.New("object already exists")
)

// Error codes surfaced in the HTTP error envelope.
const (
	CodeDecodeFailed    = "DECODE_FAILED"
	CodeEncodeFailed    = "ENCODE_FAILED"
	CodeUploadFailed    = "UPLOAD_FAILED"
	CodeDuplicateObject = "DUPLICATE_OBJECT"
)

// NotAnImage rejects a source whose declared media type is not image/*.
func NotAnImage(contentType string) *apperrors.AppError {
	return apperrors.InvalidInput(fmt.Sprintf("file type %q is not a valid image", contentType))
}

// DecodeError reports corrupt or unsupported image data.
func DecodeError(cause error) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    CodeDecodeFailed,
		Message: "image data could not be decoded",
		Status:  http.StatusUnprocessableEntity,
		Err:     fmt.Errorf("%w: %w", ErrDecode, cause),
	}
}

// EncodeError reports an encoder failure or empty encoder output.
func EncodeError(format Format, cause error) *apperrors.AppError {
	err := fmt.Errorf("%w: %s produced no output", ErrEncode, format)
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrEncode, cause)
	}
	return &apperrors.AppError{
		Code:    CodeEncodeFailed,
		Message: fmt.Sprintf("image could not be encoded as %s", format),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// UploadError wraps a transport or auth failure from object storage.
func UploadError(path string, cause error) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    CodeUploadFailed,
		Message: fmt.Sprintf("upload of %s failed", path),
		Status:  http.StatusBadGateway,
		Err:     fmt.Errorf("%w: %w", ErrUpload, cause),
	}
}

// DuplicateObjectError reports that an object already exists at path.
func DuplicateObjectError(path string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    CodeDuplicateObject,
		Message: fmt.Sprintf("an object already exists at %s", path),
		Status:  http.StatusConflict,
		Err:     fmt.Errorf("%w: %w", ErrDuplicateObject, apperrors.ErrAlreadyExists),
	}
}

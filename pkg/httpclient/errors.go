package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/vetclinic/sitemedia/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// errorBody accepts both error shapes seen from upstreams: the nested
// {"error":{"code","message"}} envelope written by httputil, and the flat
// storage API shape {"statusCode":"409","error":"Duplicate","message":"..."}.
// The storage API may answer a conflict with HTTP 400 and put the real status
// in statusCode.
type errorBody struct {
	StatusCode string          `json:"statusCode"`
	Error      json.RawMessage `json:"error"`
	Message    string          `json:"message"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// maps it to an AppError. Unrecognised bodies yield a plain error carrying
// the status and the raw body.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	status, code, message, ok := decodeErrorBody(resp.StatusCode, raw)
	if !ok {
		return fmt.Errorf("%s returned status %d: %s", upstream, resp.StatusCode, raw)
	}
	return toAppError(upstream, status, code, message)
}

func decodeErrorBody(status int, raw []byte) (int, string, string, bool) {
	var body errorBody
	if json.Unmarshal(raw, &body) != nil || (len(body.Error) == 0 && body.StatusCode == "") {
		return 0, "", "", false
	}

	var env envelopeError
	if json.Unmarshal(body.Error, &env) == nil && (env.Code != "" || env.Message != "") {
		return status, env.Code, env.Message, true
	}

	var code string
	_ = json.Unmarshal(body.Error, &code)
	if n, err := strconv.Atoi(body.StatusCode); err == nil && n >= 400 {
		status = n
	}
	message := body.Message
	if message == "" {
		message = code
	}
	return status, code, message, true
}

func toAppError(upstream string, status int, code, message string) error {
	msg := upstream + ": " + message

	switch status {
	case http.StatusNotFound:
		return apperrors.NotFound(upstream, message)
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return apperrors.InvalidInput(msg)
	case http.StatusConflict:
		return apperrors.Conflict(msg)
	case http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(msg)
	case http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: code, Message: msg, Status: status, Err: apperrors.ErrServiceUnavail}
	}
	if status >= 500 {
		return apperrors.BadGateway(msg, fmt.Errorf("%s server error (%d/%s)", upstream, status, code))
	}
	return &apperrors.AppError{Code: code, Message: msg, Status: status}
}

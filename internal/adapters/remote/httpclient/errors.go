package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hylla/tavla/internal/app"
)

// ErrConflict and friends classify non-2xx API responses.
var (
	ErrConflict       = errors.New("remote conflict")
	ErrInvalidRequest = errors.New("remote rejected request")
	ErrUnavailable    = errors.New("remote unavailable")
	ErrServer         = errors.New("remote server error")
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// APIError is one decoded error envelope returned by the backend.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Error returns a readable error message.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Status, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Unwrap maps the status onto the error values callers match with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return app.ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case http.StatusNotImplemented, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return ErrServer
	}
}

// decodeError reads one error response into an *APIError.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	if resp.Body == nil {
		apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
		return apiErr
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Hint = envelope.Error.Hint
		return apiErr
	}
	apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

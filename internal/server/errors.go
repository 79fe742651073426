package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/ginjaninja78/gradesum/internal/session"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func newAPIError(status int, code, message string, details interface{}) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// badRequest reports a malformed request.
func badRequest(code, message string) *APIError {
	return newAPIError(http.StatusBadRequest, code, message, nil)
}

// toAPIError maps a session error to its HTTP representation.
func toAPIError(err error) *APIError {
	var selErr *session.SelectionError

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return newAPIError(http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), nil)
	case errors.As(err, &selErr):
		return newAPIError(http.StatusBadRequest, "UNKNOWN_SELECTION", err.Error(), selErr.Values)
	case errors.Is(err, session.ErrNotReady):
		return newAPIError(http.StatusConflict, "NOT_READY", err.Error(), nil)
	case errors.Is(err, session.ErrPeriodsRequired):
		return newAPIError(http.StatusConflict, "PERIODS_REQUIRED", err.Error(), nil)
	case errors.Is(err, session.ErrNothingToExport):
		return newAPIError(http.StatusConflict, "NOTHING_TO_EXPORT", err.Error(), nil)
	case errors.Is(err, session.ErrUnknownLevel):
		return newAPIError(http.StatusNotFound, "UNKNOWN_LEVEL", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", nil)
	}
}

package httperror

import (
	"errors"
	"net/http"
)

// Error carries the HTTP status code a failure should render with. Handlers and
// services return it; the app's central error handler turns it into the
// {"error": message} response body.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates an Error with an explicit status code.
func New(statusCode int, message string) *Error {
	if message == "" {
		message = "Unknown Error"
	}
	return &Error{StatusCode: statusCode, Message: message}
}

// BadRequest reports invalid input.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

// Unauthorized covers both the missing-session and the not-owner case; the two
// conditions deliberately collapse into one status code.
func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

// NotFound reports a missing record.
func NotFound(message string) *Error {
	return New(http.StatusNotFound, message)
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return New(http.StatusConflict, message)
}

// StatusCode extracts the status from err, defaulting to 500 for anything that
// is not an *Error (store-layer failures fall through here untranslated).
func StatusCode(err error) int {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Message extracts the response message from err, defaulting to the generic
// internal error message.
func Message(err error) string {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	return "An unknown error occurred"
}

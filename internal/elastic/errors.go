package elastic

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents an error response from the Elasticsearch REST API.
// Callers should prefer the predicate functions (IsNotFound, IsConflict,
// etc.) to inspect errors rather than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	errType    string
	message    string
}

func (e *APIError) Error() string {
	if e.errType != "" {
		return fmt.Sprintf("%s: HTTP %d: [%s] %s", e.operation, e.statusCode, e.errType, e.message)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, errType, message string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		errType:    errType,
		message:    message,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Type returns the Elasticsearch error type, e.g.
// "resource_already_exists_exception".
func (e *APIError) Type() string { return e.errType }

// Message returns the human-readable error message.
func (e *APIError) Message() string { return e.message }

// Operation returns a short description of the API call that failed.
func (e *APIError) Operation() string { return e.operation }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsConflict reports whether err is an API error with HTTP 409 status.
func IsConflict(err error) bool { return HasStatusCode(err, http.StatusConflict) }

// IsAlreadyExists reports whether err is the index-already-exists error.
func IsAlreadyExists(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.errType == "resource_already_exists_exception"
}

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}

// Package httpapi is the bearer-authenticated REST transport shared by the
// Graph directory client and the knowledge-base backend client. Requests are
// never retried: a failed call surfaces a NetworkError and only an explicit
// user action re-issues it.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, httpapi.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("httpapi: bad request")
	ErrUnauthorized = errors.New("httpapi: unauthorized")
	ErrForbidden    = errors.New("httpapi: forbidden")
	ErrNotFound     = errors.New("httpapi: not found")
	ErrConflict     = errors.New("httpapi: conflict")
	ErrThrottled    = errors.New("httpapi: throttled")
	ErrServerError  = errors.New("httpapi: server error")
	ErrUnexpected   = errors.New("httpapi: unexpected status")
)

// NetworkError is returned for every non-2xx response. Body carries the raw
// response body so the caller can show the server's own message.
type NetworkError struct {
	StatusCode int
	RequestID  string
	Body       string
	Err        error // sentinel, for errors.Is()
}

func (e *NetworkError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Body)
	}

	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpected
	}
}

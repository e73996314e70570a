package callautomation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const staleEventMessage = "lifetime validation of the signed http request failed"

// APIError is a non-2xx answer from the call automation API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("call automation API error: %s: %s (status %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("call automation API error: %s (status %d)", e.Message, e.StatusCode)
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether err is an authentication or authorization
// rejection. Those are never retried.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// IsStaleEvent reports whether err means the event that triggered the
// request has expired, typically an incoming call answered too late.
func IsStaleEvent(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), staleEventMessage)
}

// IsNotFound reports whether the call connection is already gone.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

package jikan

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig indicates invalid client configuration
	ErrInvalidConfig = errors.New("invalid jikan configuration")
	// ErrRateLimited indicates the API kept answering 429 until the retry budget ran out
	ErrRateLimited = errors.New("jikan: rate limited")
	// ErrNetwork indicates a transport failure that survived every retry
	ErrNetwork = errors.New("jikan: network error")
)

// HTTPError represents a non-2xx response other than 429
type HTTPError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("jikan API error: status %d on %s", e.StatusCode, e.Endpoint)
}

// IsNotFound checks if the error indicates a not found response
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsServerError checks if the upstream failed
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}

// NetworkError wraps the transport failure of the last attempt
type NetworkError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("jikan: request to %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetwork) match any NetworkError.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

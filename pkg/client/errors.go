package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrUnauthorized is returned when the API key is missing or rejected.
	ErrUnauthorized = errors.New("unauthorized: api key missing or rejected")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the rate limit tracker blocks a request.
	ErrRateLimited = errors.New("request blocked: rate limit critical")
)

// HTTPError is returned for non-2xx responses other than 401/403.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog http error (status %d): %v", e.StatusCode, e.Err)
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("catalog http error (status %d): %s", e.StatusCode, truncate(e.Body, 200))
	}
	return fmt.Sprintf("catalog http error (status %d)", e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *HTTPError) Unwrap() error {
	return e.Err
}

// TransportError wraps network-level failures, including timeouts.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("catalog transport error: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassOf returns the ErrorClass of an error returned by the client.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnauthorized) {
		return ErrorClassUnauthorized
	}
	if errors.Is(err, ErrRateLimited) {
		return ErrorClassRateLimit
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return classifyStatus(httpErr.StatusCode)
	}
	return ErrorClassNetwork
}

// IsRetryable reports whether the user may sensibly retry the request by hand.
// Unauthorized errors are fatal to the operation.
func IsRetryable(err error) bool {
	return err != nil && ClassOf(err) != ErrorClassUnauthorized
}

// shouldRetry determines if an error should be retried automatically.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassUnauthorized, ErrorClassClient:
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

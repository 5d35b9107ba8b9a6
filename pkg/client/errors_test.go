package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"unauthorized should not retry", ErrorClassUnauthorized, false},
		{"client error should not retry", ErrorClassClient, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := shouldRetry(tt.errorClass); result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil", nil, ""},
		{"unauthorized sentinel", ErrUnauthorized, ErrorClassUnauthorized},
		{"wrapped unauthorized", fmt.Errorf("%w (status 403)", ErrUnauthorized), ErrorClassUnauthorized},
		{"rate limited", ErrRateLimited, ErrorClassRateLimit},
		{"404", &HTTPError{StatusCode: 404}, ErrorClassClient},
		{"429", &HTTPError{StatusCode: 429}, ErrorClassRateLimit},
		{"500", &HTTPError{StatusCode: 500}, ErrorClassServer},
		{"503 wrapped", fmt.Errorf("fetch: %w", &HTTPError{StatusCode: 503}), ErrorClassServer},
		{"transport", &TransportError{Err: io.EOF}, ErrorClassNetwork},
		{"deadline", &TransportError{Err: context.DeadlineExceeded}, ErrorClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassOf(tt.err); got != tt.expected {
				t.Errorf("ClassOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error should not be retryable")
	}
	if IsRetryable(ErrUnauthorized) {
		t.Error("unauthorized should not be retryable")
	}
	if !IsRetryable(&HTTPError{StatusCode: 500}) {
		t.Error("http error should allow manual retry")
	}
	if !IsRetryable(&TransportError{Err: io.ErrUnexpectedEOF}) {
		t.Error("transport error should allow manual retry")
	}
}

func TestHTTPError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *HTTPError
		contains string
	}{
		{
			name:     "with body",
			err:      &HTTPError{StatusCode: 500, Body: []byte(`{"message": "boom"}`)},
			contains: `catalog http error (status 500): {"message": "boom"}`,
		},
		{
			name:     "without body",
			err:      &HTTPError{StatusCode: 404},
			contains: "catalog http error (status 404)",
		},
		{
			name:     "wrapped decode error",
			err:      &HTTPError{StatusCode: 200, Err: errors.New("decode product page: bad json")},
			contains: "status 200): decode product page",
		},
		{
			name:     "long body is truncated",
			err:      &HTTPError{StatusCode: 502, Body: []byte(strings.Repeat("x", 500))},
			contains: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if msg := tt.err.Error(); !strings.Contains(msg, tt.contains) {
				t.Errorf("Error() = %q, want it to contain %q", msg, tt.contains)
			}
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	inner := errors.New("inner")

	var httpErr error = &HTTPError{StatusCode: 200, Err: inner}
	if !errors.Is(httpErr, inner) {
		t.Error("HTTPError should unwrap to inner error")
	}

	var transportErr error = &TransportError{Err: context.DeadlineExceeded}
	if !errors.Is(transportErr, context.DeadlineExceeded) {
		t.Error("TransportError should unwrap to deadline exceeded")
	}

	var target *TransportError
	if !errors.As(fmt.Errorf("outer: %w", transportErr), &target) {
		t.Error("errors.As should find TransportError")
	}
}

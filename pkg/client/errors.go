// Package client implements the Skyhook REST client: request pipeline with
// caching and retries, CRUD operations, the parallel batch executor, and safe
// full-collection iteration.
package client

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a structured error returned by the server. Authentication and
// authorization failures surface as APIErrors immediately; they are never
// retried.
type APIError struct {
	// Code is the server's application-level error code.
	Code int `json:"code"`
	// Message is the server's error text, arriving under the "error" key.
	Message string `json:"error"`
	// Status is the HTTP status the error arrived with.
	Status int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("skyhook: %s (code=%d, status=%d)", e.Message, e.Code, e.Status)
}

// RetryExhaustedError reports that every allowed attempt hit a transient
// failure. Last holds the final classification, not a raw transport error.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("skyhook: retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}

// Transient classifications. Only these trigger a retry.
var (
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrConnectionFailed   = errors.New("connection failed")
)

// classifyStatus maps a response status onto a transient sentinel, or nil
// when the status must not be retried.
func classifyStatus(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	}
	return nil
}

// isTransient reports whether err belongs to the closed retryable set.
func isTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrConnectionFailed)
}

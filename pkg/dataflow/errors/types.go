package errors

import (
	"fmt"
	"time"
)

// HTTPError represents a failed HTTP delivery with its status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("HTTP %d at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// TimeoutError indicates an operation timed out.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s: %s", e.Duration, e.Operation)
}

// CapacityError indicates a destination is full.
type CapacityError struct {
	Resource string
	Limit    int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("%s at capacity (%d)", e.Resource, e.Limit)
	}
	return fmt.Sprintf("%s at capacity", e.Resource)
}

package api

import (
	"errors"
	"fmt"
)

// Sentinel errors for API calls.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrEmptyStack = errors.New("stack is empty")
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status int
	Body   string
	err    error
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error (%d)", e.Status)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

// Unwrap exposes the sentinel a status was mapped to, if any.
func (e *APIError) Unwrap() error {
	return e.err
}

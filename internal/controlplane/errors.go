package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrEmptyStack   = errors.New("no tasks to pop")
	ErrInvalidTask  = errors.New("task name is required")
)

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"errors"
	"fmt"

	a2a "github.com/go-a2a/a2a-stepup"
)

// ErrTaskNotFound is matched by errors reporting an unknown task ID.
var ErrTaskNotFound = errors.New("task not found")

// NotFoundError reports an unknown task ID.
type NotFoundError struct {
	TaskID string
}

// Error returns the error message.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// Is reports whether target is [ErrTaskNotFound].
func (e *NotFoundError) Is(target error) bool {
	return target == ErrTaskNotFound
}

// NotUpdatableError reports an update to a task that already reached a terminal state.
type NotUpdatableError struct {
	TaskID string
	State  a2a.TaskState
}

// Error returns the error message.
func (e *NotUpdatableError) Error() string {
	return fmt.Sprintf("task %s in state %s cannot be updated", e.TaskID, e.State)
}

// StoreError represents an error from the task store.
type StoreError struct {
	Operation string
	TaskID    string
	Err       error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("task store %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("task store %s for task %s: %v", e.Operation, e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error when task validation fails.
type ValidationError struct {
	TaskID string
	Err    error
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("task %s validation failed: %v", e.TaskID, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

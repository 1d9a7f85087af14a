// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package task persists tasks and folds executor events into task snapshots.
package task

import (
	"context"

	a2a "github.com/go-a2a/a2a-stepup"
)

// Store defines the interface for task persistence operations.
//
// Implementations return copies: a task returned by Get can be mutated freely and
// only becomes visible to other callers once it is passed to Save.
type Store interface {
	// Save persists a task, replacing any previous snapshot with the same ID.
	Save(ctx context.Context, task *a2a.Task) error

	// Get retrieves a task by its ID. It returns an error matching
	// [ErrTaskNotFound] when the task does not exist.
	Get(ctx context.Context, taskID string) (*a2a.Task, error)

	// Delete removes a task. It returns an error matching [ErrTaskNotFound]
	// when the task does not exist.
	Delete(ctx context.Context, taskID string) error

	// List returns tasks ordered by ID. An empty contextID lists every task.
	// A non-positive limit means no limit.
	List(ctx context.Context, contextID string, limit, offset int) ([]*a2a.Task, error)

	// Count returns the number of tasks, filtered by contextID when it is set.
	Count(ctx context.Context, contextID string) (int64, error)

	// Initialize prepares the storage backend for use.
	Initialize(ctx context.Context) error

	// Close releases the storage backend.
	Close(ctx context.Context) error
}

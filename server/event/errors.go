// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import "errors"

var (
	// ErrQueueClosed is returned when attempting to use a closed queue.
	ErrQueueClosed = errors.New("event queue is closed")

	// ErrQueueEmpty is returned when attempting to dequeue from an empty queue
	// in non-blocking mode.
	ErrQueueEmpty = errors.New("event queue is empty")

	// ErrInvalidQueueSize is returned when attempting to create a queue with
	// invalid size.
	ErrInvalidQueueSize = errors.New("max queue size must not be negative")

	// ErrNilEvent is returned when enqueueing a nil event.
	ErrNilEvent = errors.New("event must not be nil")

	// ErrQueueExists is returned by [QueueManager.Create] when the task already has a queue.
	ErrQueueExists = errors.New("task already has an event queue")

	// ErrNoQueue is returned when a task has no queue.
	ErrNoQueue = errors.New("task has no event queue")
)

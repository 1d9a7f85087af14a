// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package event provides the per-task event queues that connect an agent
// executor to the request that is streaming its output.
//
// The executor writes events with [EventQueue.EnqueueEvent]; the handler reads
// them through an [EventConsumer] until the final event arrives. A queue can be
// tapped so that additional readers observe every event enqueued after the tap.
package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	a2a "github.com/go-a2a/a2a-stepup"
)

// DefaultMaxQueueSize is the default maximum queue size.
const DefaultMaxQueueSize = 1024

// EventQueue is a bounded FIFO of [a2a.Event] values.
//
// Enqueue blocks while the queue is full, until the context is done or the
// queue is closed. Events already buffered stay readable after Close.
type EventQueue struct {
	events  chan a2a.Event
	maxSize int

	mu       sync.RWMutex
	children []*EventQueue

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewEventQueue creates a new event queue with the specified maximum size.
// If maxSize is 0, DefaultMaxQueueSize is used.
func NewEventQueue(maxSize int) (*EventQueue, error) {
	if maxSize < 0 {
		return nil, ErrInvalidQueueSize
	}
	if maxSize == 0 {
		maxSize = DefaultMaxQueueSize
	}

	return &EventQueue{
		events:  make(chan a2a.Event, maxSize),
		maxSize: maxSize,
		done:    make(chan struct{}),
	}, nil
}

// EnqueueEvent appends ev to the queue and then to every tapped child, in that
// order, before returning. Events therefore reach every reader in the order they
// were enqueued.
func (q *EventQueue) EnqueueEvent(ctx context.Context, ev a2a.Event) error {
	if ev == nil {
		return ErrNilEvent
	}
	if q.closed.Load() {
		return ErrQueueClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.events <- ev:
	}

	q.mu.RLock()
	children := q.children
	q.mu.RUnlock()

	for _, child := range children {
		// a closed child has simply stopped listening
		if err := child.EnqueueEvent(ctx, ev); err != nil && !errors.Is(err, ErrQueueClosed) {
			return err
		}
	}

	return nil
}

// DequeueEvent retrieves the oldest event.
//
// With noWait it returns [ErrQueueEmpty] instead of blocking. Once the queue is
// closed and drained it returns [ErrQueueClosed].
func (q *EventQueue) DequeueEvent(ctx context.Context, noWait bool) (a2a.Event, error) {
	if noWait {
		select {
		case ev := <-q.events:
			return ev, nil
		default:
			if q.closed.Load() {
				return nil, ErrQueueClosed
			}
			return nil, ErrQueueEmpty
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev := <-q.events:
		return ev, nil
	case <-q.done:
		select {
		case ev := <-q.events:
			return ev, nil
		default:
			return nil, ErrQueueClosed
		}
	}
}

// Tap returns a child queue that receives every event enqueued to q from now on.
func (q *EventQueue) Tap() (*EventQueue, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}

	child, err := NewEventQueue(q.maxSize)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	// copy on write so EnqueueEvent can range without holding the lock
	children := make([]*EventQueue, len(q.children), len(q.children)+1)
	copy(children, q.children)
	q.children = append(children, child)
	q.mu.Unlock()

	return child, nil
}

// Close stops the queue and every child. Close is idempotent.
func (q *EventQueue) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)

		q.mu.RLock()
		children := q.children
		q.mu.RUnlock()
		for _, child := range children {
			child.Close()
		}
	})
}

// IsClosed reports whether Close has been called.
func (q *EventQueue) IsClosed() bool {
	return q.closed.Load()
}

// Size returns the current number of buffered events.
func (q *EventQueue) Size() int {
	return len(q.events)
}

// Capacity returns the maximum capacity of the queue.
func (q *EventQueue) Capacity() int {
	return q.maxSize
}

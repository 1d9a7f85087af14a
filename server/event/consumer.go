// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"context"
	"errors"
	"sync"

	a2a "github.com/go-a2a/a2a-stepup"
)

// EventConsumer reads a queue until its final event and records any error the
// producing executor reported.
type EventConsumer struct {
	queue *EventQueue

	mu  sync.Mutex
	err error
}

// NewEventConsumer creates a new event consumer for the given queue.
func NewEventConsumer(queue *EventQueue) *EventConsumer {
	return &EventConsumer{queue: queue}
}

// ConsumeOne returns the next buffered event without blocking.
func (c *EventConsumer) ConsumeOne(ctx context.Context) (a2a.Event, error) {
	return c.queue.DequeueEvent(ctx, true)
}

// ConsumeAll streams events in order. The channel is closed after a final event
// (see [a2a.IsFinalEvent]), when the queue is closed and drained, or when ctx is
// done. The queue is closed once the final event has been delivered.
func (c *EventConsumer) ConsumeAll(ctx context.Context) <-chan a2a.Event {
	events := make(chan a2a.Event)

	go func() {
		defer close(events)

		for {
			ev, err := c.queue.DequeueEvent(ctx, false)
			if err != nil {
				if !errors.Is(err, ErrQueueClosed) {
					c.SetAgentTaskError(err)
				}
				return
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				c.SetAgentTaskError(ctx.Err())
				return
			}

			if a2a.IsFinalEvent(ev) {
				c.queue.Close()
				return
			}
		}
	}()

	return events
}

// SetAgentTaskError records err as the reason the stream ended early. The first
// error wins.
func (c *EventConsumer) SetAgentTaskError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Err returns the error recorded by [EventConsumer.SetAgentTaskError].
func (c *EventConsumer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

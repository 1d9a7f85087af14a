// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

type subscriber struct {
	ch   chan SessionStateChangedEvent
	done chan struct{}
}

// Broker is an in-process [Publisher] and [EventSource].
type Broker struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

var (
	_ Publisher   = (*Broker)(nil)
	_ EventSource = (*Broker)(nil)
)

// NewBroker returns a Broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

// Subscribe implements [EventSource].
func (b *Broker) Subscribe(ctx context.Context) (<-chan SessionStateChangedEvent, error) {
	sub := &subscriber{
		ch:   make(chan SessionStateChangedEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(sub.done)

		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch, nil
}

// Publish implements [Publisher]. It delivers ev to every subscriber, waiting
// for slow subscribers until ctx is done.
func (b *Broker) Publish(ctx context.Context, ev SessionStateChangedEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"sync"
)

// QueueManager owns the event queue of every running task.
type QueueManager interface {
	// Create registers a new queue for taskID. It fails with [ErrQueueExists]
	// while a queue for taskID is registered.
	Create(taskID string) (*EventQueue, error)
	// Get returns the queue for taskID, if any.
	Get(taskID string) (*EventQueue, bool)
	// Tap returns a child of the task's queue.
	Tap(taskID string) (*EventQueue, error)
	// Close closes and forgets the queue for taskID.
	Close(taskID string)
	// Release closes q and forgets it only while it is still the queue
	// registered for taskID.
	Release(taskID string, q *EventQueue)
	// CloseAll closes every queue.
	CloseAll()
}

// InMemoryQueueManager is a [QueueManager] backed by a map.
type InMemoryQueueManager struct {
	mu      sync.Mutex
	queues  map[string]*EventQueue
	maxSize int
}

var _ QueueManager = (*InMemoryQueueManager)(nil)

// NewInMemoryQueueManager creates a new in-memory queue manager.
func NewInMemoryQueueManager(maxQueueSize int) *InMemoryQueueManager {
	if maxQueueSize <= 0 {
		maxQueueSize = DefaultMaxQueueSize
	}
	return &InMemoryQueueManager{
		queues:  make(map[string]*EventQueue),
		maxSize: maxQueueSize,
	}
}

// Create implements [QueueManager].
func (m *InMemoryQueueManager) Create(taskID string) (*EventQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// a closed queue still blocks until it is released
	if _, ok := m.queues[taskID]; ok {
		return nil, ErrQueueExists
	}

	q, err := NewEventQueue(m.maxSize)
	if err != nil {
		return nil, err
	}
	m.queues[taskID] = q

	return q, nil
}

// Get implements [QueueManager].
func (m *InMemoryQueueManager) Get(taskID string) (*EventQueue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[taskID]
	return q, ok
}

// Tap implements [QueueManager].
func (m *InMemoryQueueManager) Tap(taskID string) (*EventQueue, error) {
	q, ok := m.Get(taskID)
	if !ok {
		return nil, ErrNoQueue
	}
	return q.Tap()
}

// Close implements [QueueManager].
func (m *InMemoryQueueManager) Close(taskID string) {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	delete(m.queues, taskID)
	m.mu.Unlock()

	if ok {
		q.Close()
	}
}

// Release implements [QueueManager].
func (m *InMemoryQueueManager) Release(taskID string, q *EventQueue) {
	m.mu.Lock()
	if cur, ok := m.queues[taskID]; ok && cur == q {
		delete(m.queues, taskID)
	}
	m.mu.Unlock()

	q.Close()
}

// CloseAll implements [QueueManager].
func (m *InMemoryQueueManager) CloseAll() {
	m.mu.Lock()
	queues := m.queues
	m.queues = make(map[string]*EventQueue)
	m.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
}

// Size returns the number of managed queues.
func (m *InMemoryQueueManager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues)
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	a2a "github.com/go-a2a/a2a-stepup"
)

// InMemoryStore is an in-memory implementation of [Store].
// Task data is lost when the process stops.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks: make(map[string]*a2a.Task),
	}
}

// Save implements [Store].
func (s *InMemoryStore) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}
	if err := task.Validate(); err != nil {
		return &ValidationError{TaskID: task.ID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()

	return nil
}

// Get implements [Store].
func (s *InMemoryStore) Get(ctx context.Context, taskID string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, &NotFoundError{TaskID: taskID}
	}

	return task.Clone(), nil
}

// Delete implements [Store].
func (s *InMemoryStore) Delete(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return &NotFoundError{TaskID: taskID}
	}
	delete(s.tasks, taskID)

	return nil
}

// List implements [Store].
func (s *InMemoryStore) List(ctx context.Context, contextID string, limit, offset int) ([]*a2a.Task, error) {
	s.mu.RLock()
	matched := make([]*a2a.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if contextID == "" || task.ContextID == contextID {
			matched = append(matched, task.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *a2a.Task) int {
		return strings.Compare(a.ID, b.ID)
	})

	if offset > 0 {
		if offset >= len(matched) {
			return []*a2a.Task{}, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

// Count implements [Store].
func (s *InMemoryStore) Count(ctx context.Context, contextID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if contextID == "" {
		return int64(len(s.tasks)), nil
	}

	var n int64
	for _, task := range s.tasks {
		if task.ContextID == contextID {
			n++
		}
	}
	return n, nil
}

// Initialize implements [Store].
func (s *InMemoryStore) Initialize(context.Context) error { return nil }

// Close implements [Store].
func (s *InMemoryStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tasks)
	return nil
}

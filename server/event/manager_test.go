// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"errors"
	"testing"
)

func TestInMemoryQueueManager(t *testing.T) {
	t.Parallel()

	m := NewInMemoryQueueManager(0)

	q, err := m.Create("task-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if q.Capacity() != DefaultMaxQueueSize {
		t.Errorf("Capacity() = %d, want %d", q.Capacity(), DefaultMaxQueueSize)
	}
	if _, err := m.Create("task-1"); !errors.Is(err, ErrQueueExists) {
		t.Errorf("Create() duplicate error = %v, want %v", err, ErrQueueExists)
	}

	got, ok := m.Get("task-1")
	if !ok || got != q {
		t.Errorf("Get() = %p, %v, want %p, true", got, ok, q)
	}

	child, err := m.Tap("task-1")
	if err != nil {
		t.Fatalf("Tap() error = %v", err)
	}
	if _, err := m.Tap("missing"); !errors.Is(err, ErrNoQueue) {
		t.Errorf("Tap(missing) error = %v, want %v", err, ErrNoQueue)
	}

	m.Close("task-1")
	if !q.IsClosed() || !child.IsClosed() {
		t.Error("Close() must close the queue and its taps")
	}
	if _, ok := m.Get("task-1"); ok {
		t.Error("Get() after Close() found a queue")
	}

	// a closed queue can be replaced
	if _, err := m.Create("task-1"); err != nil {
		t.Fatalf("Create() after close error = %v", err)
	}
	if _, err := m.Create("task-2"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if m.Size() != 2 {
		t.Errorf("Size() = %d, want 2", m.Size())
	}

	m.CloseAll()
	if m.Size() != 0 {
		t.Errorf("Size() after CloseAll() = %d, want 0", m.Size())
	}
}

func TestInMemoryQueueManager_Release(t *testing.T) {
	t.Parallel()

	m := NewInMemoryQueueManager(4)

	first, err := m.Create("task-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	first.Close()

	if _, err := m.Create("task-1"); !errors.Is(err, ErrQueueExists) {
		t.Errorf("Create() over a closed but registered queue error = %v, want %v", err, ErrQueueExists)
	}

	m.Release("task-1", first)
	second, err := m.Create("task-1")
	if err != nil {
		t.Fatalf("Create() after Release error = %v", err)
	}

	m.Release("task-1", first)
	if got, ok := m.Get("task-1"); !ok || got != second {
		t.Errorf("Get() after stale Release = %p, %v, want %p, true", got, ok, second)
	}

	m.Release("task-1", second)
	if _, ok := m.Get("task-1"); ok {
		t.Error("Get() after Release found a queue")
	}
	if !second.IsClosed() {
		t.Error("Release() left the queue open")
	}
}

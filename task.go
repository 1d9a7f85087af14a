// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a task at a point in time.
type TaskStatus struct {
	// Additional status updates for client
	Message *Message `json:"message,omitzero"`
	// The current state of the task.
	State TaskState `json:"state"`
	// ISO 8601 datetime string when the status was recorded.
	Timestamp string `json:"timestamp,omitzero"`
}

// NewTaskStatus returns a status for state stamped with the current time.
func NewTaskStatus(state TaskState, msg *Message) TaskStatus {
	return TaskStatus{
		State:     state,
		Message:   msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// Task represents one unit of agent work with its own lifecycle.
type Task struct {
	// Event type
	Kind EventKind `json:"kind"`
	// Unique identifier for the task
	ID string `json:"id"`
	// Server-generated id for contextual alignment across interactions
	ContextID string `json:"contextId"`
	// Current status of the task
	Status TaskStatus `json:"status"`
	// Messages exchanged so far, oldest first.
	History []*Message `json:"history,omitzero"`
	// Collection of artifacts created by the agent.
	Artifacts []*Artifact `json:"artifacts,omitzero"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

var _ Event = (*Task)(nil)

// GetEventKind implements [Event].
func (t *Task) GetEventKind() EventKind { return TaskEventKind }

// GetTaskID implements [Event].
func (t *Task) GetTaskID() string { return t.ID }

// GetContextID implements [Event].
func (t *Task) GetContextID() string { return t.ContextID }

// Validate reports whether t is well formed.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if t.ContextID == "" {
		return fmt.Errorf("task context ID cannot be empty")
	}
	if t.Status.State == "" {
		return fmt.Errorf("task state cannot be empty")
	}
	for i, msg := range t.History {
		if msg == nil {
			return fmt.Errorf("history message at index %d cannot be nil", i)
		}
	}
	return nil
}

// HasMessage reports whether a message with messageID is already in the history.
func (t *Task) HasMessage(messageID string) bool {
	return slices.ContainsFunc(t.History, func(m *Message) bool {
		return m.MessageID == messageID
	})
}

// Clone returns a copy of t that can be mutated without affecting t.
// Messages are immutable once created and are shared.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}

	c := *t
	c.History = slices.Clone(t.History)
	c.Metadata = maps.Clone(t.Metadata)
	if t.Artifacts != nil {
		c.Artifacts = make([]*Artifact, len(t.Artifacts))
		for i, a := range t.Artifacts {
			c.Artifacts[i] = a.Clone()
		}
	}

	return &c
}

// NewTask creates a submitted task seeded with msg.
//
// The task ID is generated unless taskID is set. The context ID is taken from msg
// and generated when msg carries none.
func NewTask(taskID string, msg *Message) *Task {
	if taskID == "" {
		taskID = uuid.NewString()
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	return &Task{
		Kind:      TaskEventKind,
		ID:        taskID,
		ContextID: contextID,
		Status:    NewTaskStatus(TaskStateSubmitted, nil),
		History:   []*Message{msg},
		Metadata:  maps.Clone(msg.Metadata),
	}
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// Event is any record streamed from an agent to its caller.
//
// Concrete events are [*Task], [*Message], [*TaskStatusUpdateEvent] and
// [*TaskArtifactUpdateEvent].
type Event interface {
	// GetEventKind returns the event kind for type discrimination.
	GetEventKind() EventKind
	// GetTaskID returns the task ID associated with this event.
	GetTaskID() string
	// GetContextID returns the context ID associated with this event.
	GetContextID() string
}

// TaskStatusUpdateEvent is sent by the server to notify the client of a change in task status.
type TaskStatusUpdateEvent struct {
	// Event type
	Kind EventKind `json:"kind"`
	// Task id
	TaskID string `json:"taskId"`
	// The context the task is associated with
	ContextID string `json:"contextId"`
	// Current status of the task
	Status TaskStatus `json:"status"`
	// Indicates the end of the event stream
	Final bool `json:"final"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

var _ Event = (*TaskStatusUpdateEvent)(nil)

// GetEventKind implements [Event].
func (e *TaskStatusUpdateEvent) GetEventKind() EventKind { return StatusUpdateEventKind }

// GetTaskID implements [Event].
func (e *TaskStatusUpdateEvent) GetTaskID() string { return e.TaskID }

// GetContextID implements [Event].
func (e *TaskStatusUpdateEvent) GetContextID() string { return e.ContextID }

// NewStatusUpdateEvent returns a status update for the task. Final is set for
// terminal states.
func NewStatusUpdateEvent(taskID, contextID string, state TaskState, msg *Message) *TaskStatusUpdateEvent {
	return &TaskStatusUpdateEvent{
		Kind:      StatusUpdateEventKind,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    NewTaskStatus(state, msg),
		Final:     state.Terminal(),
	}
}

// TaskArtifactUpdateEvent is sent by the server to notify the client of an artifact
// update on a task.
type TaskArtifactUpdateEvent struct {
	// Event type
	Kind EventKind `json:"kind"`
	// Task id
	TaskID string `json:"taskId"`
	// The context the task is associated with
	ContextID string `json:"contextId"`
	// Generated artifact
	Artifact *Artifact `json:"artifact"`
	// Indicates if this artifact appends to a previous one
	Append bool `json:"append,omitzero"`
	// Indicates if this is the last chunk of the artifact
	LastChunk bool `json:"lastChunk,omitzero"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

var _ Event = (*TaskArtifactUpdateEvent)(nil)

// GetEventKind implements [Event].
func (e *TaskArtifactUpdateEvent) GetEventKind() EventKind { return ArtifactUpdateEventKind }

// GetTaskID implements [Event].
func (e *TaskArtifactUpdateEvent) GetTaskID() string { return e.TaskID }

// GetContextID implements [Event].
func (e *TaskArtifactUpdateEvent) GetContextID() string { return e.ContextID }

// IsFinalEvent reports whether ev ends a stream: a final status update, any
// message, or a task snapshot in a terminal state.
func IsFinalEvent(ev Event) bool {
	switch e := ev.(type) {
	case *TaskStatusUpdateEvent:
		return e.Final
	case *Message:
		return true
	case *Task:
		return e.Status.State.Terminal()
	default:
		return false
	}
}

// UnmarshalEvent decodes a kind-tagged record into its concrete [Event] type.
func UnmarshalEvent(data []byte) (Event, error) {
	var probe struct {
		Kind EventKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode event kind: %w", err)
	}

	var ev Event
	switch probe.Kind {
	case TaskEventKind:
		ev = &Task{}
	case MessageEventKind:
		ev = &Message{}
	case StatusUpdateEventKind:
		ev = &TaskStatusUpdateEvent{}
	case ArtifactUpdateEventKind:
		ev = &TaskArtifactUpdateEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", probe.Kind)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", probe.Kind, err)
	}

	return ev, nil
}

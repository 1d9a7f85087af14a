// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2a provides the Agent-to-Agent (A2A) protocol types used by the step-up
// authorization agent and its client, together with the wire codec for the
// kind-tagged event records exchanged over a streaming connection.
package a2a

// Version is the A2A protocol version advertised in the agent card.
const Version = "1.0"

// TaskState represents the state of a Task.
type TaskState string

const (
	// TaskStateSubmitted indicates the task has been received but not started.
	TaskStateSubmitted TaskState = "submitted"

	// TaskStateWorking indicates the task is being worked on.
	TaskStateWorking TaskState = "working"

	// TaskStateInputRequired indicates the agent is waiting for more user input.
	TaskStateInputRequired TaskState = "input-required"

	// TaskStateCompleted indicates the task has been completed.
	TaskStateCompleted TaskState = "completed"

	// TaskStateCanceled indicates the task has been canceled.
	TaskStateCanceled TaskState = "canceled"

	// TaskStateFailed indicates the task has failed.
	TaskStateFailed TaskState = "failed"

	// TaskStateRejected indicates the agent refused the task.
	TaskStateRejected TaskState = "rejected"

	// TaskStateAuthRequired indicates the task is suspended until an out-of-band
	// authorization completes.
	TaskStateAuthRequired TaskState = "auth-required"

	// TaskStateUnknown is used when the state cannot be determined.
	TaskStateUnknown TaskState = "unknown"
)

// Terminal reports whether s is a terminal state. No status update may follow a
// terminal one.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	default:
		return false
	}
}

// Interrupted reports whether s pauses the task waiting on the client.
func (s TaskState) Interrupted() bool {
	return s == TaskStateInputRequired || s == TaskStateAuthRequired
}

// Role represents the sender of a [Message].
type Role string

const (
	// RoleUser identifies a message sent by the client.
	RoleUser Role = "user"

	// RoleAgent identifies a message produced by the agent.
	RoleAgent Role = "agent"
)

// EventKind is the discriminator carried by every streamed record in its "kind" member.
type EventKind string

const (
	TaskEventKind           EventKind = "task"
	MessageEventKind        EventKind = "message"
	StatusUpdateEventKind   EventKind = "status-update"
	ArtifactUpdateEventKind EventKind = "artifact-update"
)

// PartKind is the discriminator of a message [Part].
type PartKind string

const (
	TextPartKind PartKind = "text"
	FilePartKind PartKind = "file"
	DataPartKind PartKind = "data"
)

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/server/event"
)

// Updater publishes the events of one task to its queue. Once a terminal status
// has been published every further update is refused.
type Updater struct {
	taskID    string
	contextID string
	queue     *event.EventQueue

	mu       sync.Mutex
	terminal a2a.TaskState
}

// NewUpdater returns an Updater for the given task.
func NewUpdater(queue *event.EventQueue, taskID, contextID string) (*Updater, error) {
	if taskID == "" {
		return nil, fmt.Errorf("task ID cannot be empty")
	}
	if contextID == "" {
		return nil, fmt.Errorf("context ID cannot be empty")
	}
	if queue == nil {
		return nil, fmt.Errorf("event queue cannot be nil")
	}

	return &Updater{
		taskID:    taskID,
		contextID: contextID,
		queue:     queue,
	}, nil
}

// TaskID returns the task ID.
func (u *Updater) TaskID() string { return u.taskID }

// ContextID returns the context ID.
func (u *Updater) ContextID() string { return u.contextID }

// IsTerminal reports whether a terminal status has been published.
func (u *Updater) IsTerminal() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.terminal != ""
}

// NewAgentMessage returns an agent text message bound to the task.
func (u *Updater) NewAgentMessage(text string) *a2a.Message {
	return a2a.NewAgentTextMessage(u.taskID, u.contextID, text)
}

// UpdateStatus publishes a status update carrying msg, which may be nil.
func (u *Updater) UpdateStatus(ctx context.Context, state a2a.TaskState, msg *a2a.Message) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal != "" {
		return &NotUpdatableError{TaskID: u.taskID, State: u.terminal}
	}

	ev := a2a.NewStatusUpdateEvent(u.taskID, u.contextID, state, msg)
	if err := u.queue.EnqueueEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish %s status for task %s: %w", state, u.taskID, err)
	}
	if ev.Final {
		u.terminal = state
	}

	return nil
}

// Submit publishes the submitted state.
func (u *Updater) Submit(ctx context.Context) error {
	return u.UpdateStatus(ctx, a2a.TaskStateSubmitted, nil)
}

// StartWork publishes the working state with an optional progress text.
func (u *Updater) StartWork(ctx context.Context, text string) error {
	return u.UpdateStatus(ctx, a2a.TaskStateWorking, u.textMessage(text))
}

// RequiresAuth publishes the auth-required state with msg.
func (u *Updater) RequiresAuth(ctx context.Context, msg *a2a.Message) error {
	return u.UpdateStatus(ctx, a2a.TaskStateAuthRequired, msg)
}

// RequiresInput publishes the input-required state.
func (u *Updater) RequiresInput(ctx context.Context, text string) error {
	return u.UpdateStatus(ctx, a2a.TaskStateInputRequired, u.textMessage(text))
}

// Complete publishes the completed state.
func (u *Updater) Complete(ctx context.Context, text string) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCompleted, u.textMessage(text))
}

// Fail publishes the failed state.
func (u *Updater) Fail(ctx context.Context, text string) error {
	return u.UpdateStatus(ctx, a2a.TaskStateFailed, u.textMessage(text))
}

// Cancel publishes the canceled state without a message.
func (u *Updater) Cancel(ctx context.Context) error {
	return u.UpdateStatus(ctx, a2a.TaskStateCanceled, nil)
}

// AddArtifact publishes an artifact update. An empty artifact ID is generated.
func (u *Updater) AddArtifact(ctx context.Context, artifact *a2a.Artifact, extend, lastChunk bool) error {
	if artifact == nil {
		return fmt.Errorf("artifact cannot be nil")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.terminal != "" {
		return &NotUpdatableError{TaskID: u.taskID, State: u.terminal}
	}
	if artifact.ArtifactID == "" {
		artifact.ArtifactID = uuid.NewString()
	}

	ev := &a2a.TaskArtifactUpdateEvent{
		Kind:      a2a.ArtifactUpdateEventKind,
		TaskID:    u.taskID,
		ContextID: u.contextID,
		Artifact:  artifact,
		Append:    extend,
		LastChunk: lastChunk,
	}
	if err := u.queue.EnqueueEvent(ctx, ev); err != nil {
		return fmt.Errorf("publish artifact for task %s: %w", u.taskID, err)
	}

	return nil
}

func (u *Updater) textMessage(text string) *a2a.Message {
	if text == "" {
		return nil
	}
	return u.NewAgentMessage(text)
}

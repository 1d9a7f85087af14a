// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent_execution defines the contract between the request handler and
// agent logic: the [RequestContext] handed to an execution and the
// [AgentExecutor] that runs it.
package agent_execution

import (
	"context"
	"fmt"
	"slices"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/server/event"
)

// AgentExecutor implements the agent logic behind the request handler.
//
// Execute publishes the events of one task to queue and returns once the task is
// terminal or interrupted. Cancel asks a running execution to stop; it may return
// before the execution reacts.
type AgentExecutor interface {
	Execute(ctx context.Context, reqCtx *RequestContext, queue *event.EventQueue) error
	Cancel(ctx context.Context, taskID string) error
}

// RequestContext holds everything an execution needs to know about the request
// that started it.
type RequestContext struct {
	params       *a2a.MessageSendParams
	taskID       string
	contextID    string
	task         *a2a.Task
	relatedTasks []*a2a.Task
}

// NewRequestContext returns a RequestContext. task is the stored task the message
// continues and may be nil.
func NewRequestContext(params *a2a.MessageSendParams, taskID, contextID string, task *a2a.Task) *RequestContext {
	return &RequestContext{
		params:    params,
		taskID:    taskID,
		contextID: contextID,
		task:      task,
	}
}

// Message returns the inbound message.
func (rc *RequestContext) Message() *a2a.Message {
	if rc.params == nil {
		return nil
	}
	return rc.params.Message
}

// Params returns the message send parameters.
func (rc *RequestContext) Params() *a2a.MessageSendParams { return rc.params }

// TaskID returns the task ID assigned to the request.
func (rc *RequestContext) TaskID() string { return rc.taskID }

// ContextID returns the context ID assigned to the request.
func (rc *RequestContext) ContextID() string { return rc.contextID }

// Task returns the stored task, or nil for a new task.
func (rc *RequestContext) Task() *a2a.Task { return rc.task }

// RelatedTasks returns the other tasks of the same context, when the builder
// was asked to load them.
func (rc *RequestContext) RelatedTasks() []*a2a.Task { return slices.Clone(rc.relatedTasks) }

// AttachRelatedTask records a task of the same context.
func (rc *RequestContext) AttachRelatedTask(t *a2a.Task) {
	rc.relatedTasks = append(rc.relatedTasks, t)
}

// Validate reports whether rc can be executed.
func (rc *RequestContext) Validate() error {
	if rc.params == nil {
		return fmt.Errorf("message send params cannot be nil")
	}
	if err := rc.params.Validate(); err != nil {
		return err
	}
	if rc.taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if rc.contextID == "" {
		return fmt.Errorf("context ID cannot be empty")
	}
	if rc.task != nil && rc.task.ID != rc.taskID {
		return fmt.Errorf("task ID %q does not match the stored task %q", rc.taskID, rc.task.ID)
	}
	return nil
}

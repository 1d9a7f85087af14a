// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/server/task"
)

// maxRelatedTasks bounds how many tasks of a context are attached.
const maxRelatedTasks = 20

// SimpleRequestContextBuilder is the default [RequestContextBuilder].
//
// The task ID is the stored task's, else the message's, else a new UUID. The
// context ID is the message's, else the stored task's, else a new UUID.
type SimpleRequestContextBuilder struct {
	store task.Store
}

var _ RequestContextBuilder = (*SimpleRequestContextBuilder)(nil)

// NewSimpleRequestContextBuilder returns a builder. When store is not nil the
// other tasks of the request's context are attached as related tasks.
func NewSimpleRequestContextBuilder(store task.Store) *SimpleRequestContextBuilder {
	return &SimpleRequestContextBuilder{store: store}
}

// Build implements [RequestContextBuilder].
func (b *SimpleRequestContextBuilder) Build(ctx context.Context, params *a2a.MessageSendParams, currentTask *a2a.Task) (*RequestContext, error) {
	if params == nil {
		return nil, errors.New("message send params cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message send params: %w", err)
	}
	msg := params.Message

	taskID := msg.TaskID
	if currentTask != nil {
		taskID = currentTask.ID
	}
	if taskID == "" {
		taskID = uuid.NewString()
	}

	contextID := msg.ContextID
	if contextID == "" && currentTask != nil {
		contextID = currentTask.ContextID
	}
	if contextID == "" {
		contextID = uuid.NewString()
	}

	rc := NewRequestContext(params, taskID, contextID, currentTask)

	if b.store != nil {
		related, err := b.store.List(ctx, contextID, maxRelatedTasks, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to populate related tasks: %w", err)
		}
		for _, t := range related {
			if t.ID != taskID {
				rc.AttachRelatedTask(t)
			}
		}
	}

	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("built request context is invalid: %w", err)
	}
	return rc, nil
}

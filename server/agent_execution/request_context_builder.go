// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent_execution

import (
	"context"

	a2a "github.com/go-a2a/a2a-stepup"
)

// RequestContextBuilder builds the [RequestContext] supplied to an [AgentExecutor].
type RequestContextBuilder interface {
	// Build creates a RequestContext for params. currentTask is the stored task
	// the message continues and may be nil.
	Build(ctx context.Context, params *a2a.MessageSendParams, currentTask *a2a.Task) (*RequestContext, error)
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent implements the sample agent: a question answering executor that
// suspends every task of an unauthorized context until the user presents a
// credential through the in-task OID4VP extension.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/idset"
	"github.com/go-a2a/a2a-stepup/llm"
	"github.com/go-a2a/a2a-stepup/server/agent_execution"
	"github.com/go-a2a/a2a-stepup/server/event"
	"github.com/go-a2a/a2a-stepup/server/task"
)

// DefaultAuthTimeout bounds the wait for a context to be authorized.
const DefaultAuthTimeout = 10 * time.Second

// User visible status texts.
const (
	AuthRequiredText = "Additional authorization is required for this task."
	WorkingText      = "Thinking..."
	NoMessagesText   = "No messages found to process."
	AuthTimeoutText  = "Authorization timeout exceeded."
	CompletedText    = "Completed."
	agentErrorPrefix = "Agent error: "
)

// Authorizer gates contexts behind an out-of-band authorization.
// [*authz.Correlator] implements it.
type Authorizer interface {
	IsAuthorized(contextID string) bool
	CreateAuthorizationRequest(ctx context.Context, contextID string) (*a2a.AuthorizationRequest, error)
	WaitForContextAuthorization(ctx context.Context, contextID string, timeout time.Duration) error
}

// Option configures an [Executor].
type Option func(*Executor)

// WithAuthTimeout sets how long an execution waits for authorization.
func WithAuthTimeout(d time.Duration) Option {
	return func(e *Executor) { e.authTimeout = d }
}

// WithCancelledTasks sets the store of cancelled task IDs.
func WithCancelledTasks(s idset.Set) Option {
	return func(e *Executor) { e.cancelled = s }
}

// WithPrompt sets the prompt name passed to the completer.
func WithPrompt(name string) Option {
	return func(e *Executor) { e.prompt = name }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Executor) { e.meter = mp.Meter(instrumentationName) }
}

// Executor is the sample agent [agent_execution.AgentExecutor].
type Executor struct {
	completer   llm.Completer
	authorizer  Authorizer
	cancelled   idset.Set
	authTimeout time.Duration
	prompt      string
	logger      *slog.Logger
	tracer      trace.Tracer
	meter       metric.Meter
	metrics     *metrics
}

var _ agent_execution.AgentExecutor = (*Executor)(nil)

// NewExecutor returns an Executor answering with completer once authorizer
// has authorized the task's context.
func NewExecutor(completer llm.Completer, authorizer Authorizer, opts ...Option) *Executor {
	e := &Executor{
		completer:   completer,
		authorizer:  authorizer,
		authTimeout: DefaultAuthTimeout,
		prompt:      llm.SampleAgentPrompt,
		logger:      slog.Default(),
		tracer:      otel.Tracer(instrumentationName),
		meter:       otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cancelled == nil {
		e.cancelled = idset.NewMemory()
	}
	e.metrics = newMetrics(e.meter)

	return e
}

// Execute implements [agent_execution.AgentExecutor].
//
// The task moves through submitted, auth-required (skipped for an authorized
// context), working and one terminal state. Backend failures are reported as a
// failed status; the returned error is only set when events cannot be published.
func (e *Executor) Execute(ctx context.Context, reqCtx *agent_execution.RequestContext, queue *event.EventQueue) error {
	if reqCtx == nil || reqCtx.Message() == nil {
		return errors.New("request context has no message")
	}
	if queue == nil {
		return errors.New("event queue cannot be nil")
	}

	msg := reqCtx.Message()
	current := reqCtx.Task()
	taskID, contextID := resolveIDs(reqCtx)

	ctx, span := e.tracer.Start(ctx, "a2a.agent.Execute", trace.WithAttributes(
		attribute.String("a2a.task_id", taskID),
		attribute.String("a2a.context_id", contextID),
	))
	defer span.End()

	logger := e.logger.With(slog.String("task_id", taskID), slog.String("context_id", contextID))
	logger.InfoContext(ctx, "processing message", slog.String("message_id", msg.MessageID))

	updater, err := task.NewUpdater(queue, taskID, contextID)
	if err != nil {
		return err
	}

	if current == nil {
		submitted := a2a.NewTask(taskID, msg)
		submitted.ContextID = contextID
		if err := queue.EnqueueEvent(ctx, submitted); err != nil {
			return fmt.Errorf("publish task %s: %w", taskID, err)
		}
	}

	if !e.authorizer.IsAuthorized(contextID) {
		done, err := e.authorize(ctx, logger, updater)
		if err != nil || done {
			return err
		}
	}

	if err := updater.StartWork(ctx, WorkingText); err != nil {
		return err
	}

	var history []*a2a.Message
	if current != nil {
		history = slices.Clone(current.History)
	}
	if !slices.ContainsFunc(history, func(m *a2a.Message) bool { return m.MessageID == msg.MessageID }) {
		history = append(history, msg)
	}

	messages := BackendMessages(history)
	if len(messages) == 0 {
		logger.WarnContext(ctx, "no text messages in history")
		return e.finish(ctx, updater, a2a.TaskStateFailed, NoMessagesText)
	}

	resp, cerr := e.completer.Complete(ctx, e.prompt, nil, &llm.Request{Messages: messages})

	// a backend failure wins over a pending cancellation
	if cerr != nil {
		logger.ErrorContext(ctx, "completion failed", slog.Any("error", cerr))
		span.RecordError(cerr)
		return e.finish(ctx, updater, a2a.TaskStateFailed, agentErrorPrefix+cerr.Error())
	}

	// single cancellation checkpoint
	if e.cancelled.Contains(taskID) {
		logger.InfoContext(ctx, "request cancelled")
		return e.finish(ctx, updater, a2a.TaskStateCanceled, "")
	}

	text := CompletedText
	if resp != nil && resp.Text != "" {
		text = resp.Text
	}
	logger.InfoContext(ctx, "task finished", slog.String("state", string(a2a.TaskStateCompleted)))

	return e.finish(ctx, updater, a2a.TaskStateCompleted, text)
}

// authorize publishes auth-required and waits for the context. done is true
// when the task was failed.
func (e *Executor) authorize(ctx context.Context, logger *slog.Logger, updater *task.Updater) (done bool, err error) {
	contextID := updater.ContextID()

	req, err := e.authorizer.CreateAuthorizationRequest(ctx, contextID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to create authorization request", slog.Any("error", err))
		return true, e.finish(ctx, updater, a2a.TaskStateFailed, agentErrorPrefix+err.Error())
	}

	prompt := updater.NewAgentMessage(AuthRequiredText)
	prompt.Metadata = a2a.AuthorizationMetadata(*req)
	if err := updater.RequiresAuth(ctx, prompt); err != nil {
		return true, err
	}

	if err := e.authorizer.WaitForContextAuthorization(ctx, contextID, e.authTimeout); err != nil {
		logger.WarnContext(ctx, "authorization wait failed", slog.Any("error", err))
		return true, e.finish(ctx, updater, a2a.TaskStateFailed, AuthTimeoutText)
	}

	logger.InfoContext(ctx, "context authorized")
	return false, nil
}

func (e *Executor) finish(ctx context.Context, updater *task.Updater, state a2a.TaskState, text string) error {
	var msg *a2a.Message
	if text != "" {
		msg = updater.NewAgentMessage(text)
	}
	if err := updater.UpdateStatus(ctx, state, msg); err != nil {
		return err
	}
	e.metrics.tasks.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
	return nil
}

// Cancel implements [agent_execution.AgentExecutor]. It only records the task:
// a running execution notices once the backend call returns.
func (e *Executor) Cancel(ctx context.Context, taskID string) error {
	e.cancelled.Add(taskID)
	e.logger.InfoContext(ctx, "task cancellation requested", slog.String("task_id", taskID))
	return nil
}

func resolveIDs(reqCtx *agent_execution.RequestContext) (taskID, contextID string) {
	msg, current := reqCtx.Message(), reqCtx.Task()

	switch {
	case current != nil:
		taskID = current.ID
	case reqCtx.TaskID() != "":
		taskID = reqCtx.TaskID()
	default:
		taskID = uuid.NewString()
	}

	switch {
	case msg.ContextID != "":
		contextID = msg.ContextID
	case current != nil && current.ContextID != "":
		contextID = current.ContextID
	case reqCtx.ContextID() != "":
		contextID = reqCtx.ContextID()
	default:
		contextID = uuid.NewString()
	}

	return taskID, contextID
}

// BackendMessages maps A2A history to completion messages. Agent turns become
// model turns, empty text parts are dropped and so are messages left empty.
func BackendMessages(history []*a2a.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == a2a.RoleAgent {
			role = llm.RoleModel
		}

		var content []llm.Part
		for _, text := range a2a.TextParts(m.Parts) {
			if text != "" {
				content = append(content, llm.Part{Text: text})
			}
		}
		if len(content) == 0 {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: content})
	}
	return out
}

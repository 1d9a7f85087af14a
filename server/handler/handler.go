// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package handler exposes an [agent_execution.AgentExecutor] over the A2A
// JSON-RPC binding.
//
// [DefaultRequestHandler] owns the task lifecycle: it loads and validates the
// addressed task, runs the executor on its own goroutine and persists every event
// the executor produces. [JSONRPCHandler] serves it over HTTP, streaming events
// as server-sent events or over a WebSocket.
package handler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/server/agent_execution"
	"github.com/go-a2a/a2a-stepup/server/event"
	"github.com/go-a2a/a2a-stepup/server/task"
)

const instrumentationName = "github.com/go-a2a/a2a-stepup/server/handler"

// RequestHandler implements the A2A methods independently of the transport.
//
// Errors returned by a RequestHandler are [*a2a.JSONRPCError] values whenever
// they describe a protocol failure.
type RequestHandler interface {
	// OnGetTask returns the task snapshot, trimmed to the requested history length.
	OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error)

	// OnCancelTask requests cancellation of a task and returns its snapshot.
	OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error)

	// OnMessageSend runs the message and returns once the task is terminal or
	// interrupted. The result is a [*a2a.Task] or a [*a2a.Message].
	OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error)

	// OnMessageSendStream runs the message and returns its events in publish
	// order. The sequence must be consumed: execution starts on first iteration.
	OnMessageSendStream(ctx context.Context, params *a2a.MessageSendParams) (iter.Seq2[a2a.Event, error], error)
}

// RequestHandlerOption configures a [DefaultRequestHandler].
type RequestHandlerOption func(*DefaultRequestHandler)

// WithQueueManager sets the manager owning per-task event queues.
func WithQueueManager(m event.QueueManager) RequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.queues = m
	}
}

// WithRequestContextBuilder sets the builder deriving task and context IDs.
func WithRequestContextBuilder(b agent_execution.RequestContextBuilder) RequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.builder = b
	}
}

// WithHandlerLogger sets the [*slog.Logger] for the [DefaultRequestHandler].
func WithHandlerLogger(logger *slog.Logger) RequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.logger = logger
	}
}

// WithHandlerTracerProvider sets the tracer provider for request spans.
func WithHandlerTracerProvider(tp trace.TracerProvider) RequestHandlerOption {
	return func(h *DefaultRequestHandler) {
		h.tracer = tp.Tracer(instrumentationName)
	}
}

// DefaultRequestHandler is the [RequestHandler] backed by a [task.Store].
type DefaultRequestHandler struct {
	executor   agent_execution.AgentExecutor
	store      task.Store
	aggregator *task.Aggregator
	queues     event.QueueManager
	builder    agent_execution.RequestContextBuilder
	logger     *slog.Logger
	tracer     trace.Tracer
}

var _ RequestHandler = (*DefaultRequestHandler)(nil)

// NewDefaultRequestHandler returns a handler running executor and persisting
// tasks into store.
func NewDefaultRequestHandler(executor agent_execution.AgentExecutor, store task.Store, opts ...RequestHandlerOption) *DefaultRequestHandler {
	h := &DefaultRequestHandler{
		executor:   executor,
		store:      store,
		aggregator: task.NewAggregator(store),
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.queues == nil {
		h.queues = event.NewInMemoryQueueManager(event.DefaultMaxQueueSize)
	}
	if h.builder == nil {
		h.builder = agent_execution.NewSimpleRequestContextBuilder(store)
	}
	return h
}

// OnGetTask implements [RequestHandler].
func (h *DefaultRequestHandler) OnGetTask(ctx context.Context, params *a2a.TaskQueryParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, a2a.NewInvalidParamsError("task id is required")
	}

	t, err := h.loadTask(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	return trimHistory(t, params.HistoryLength), nil
}

// OnCancelTask implements [RequestHandler].
//
// A running task is cancelled cooperatively through the executor and the
// returned snapshot may still show its current state. A task with no running
// execution is moved to canceled directly.
func (h *DefaultRequestHandler) OnCancelTask(ctx context.Context, params *a2a.TaskIDParams) (*a2a.Task, error) {
	if params == nil || params.ID == "" {
		return nil, a2a.NewInvalidParamsError("task id is required")
	}

	t, err := h.loadTask(ctx, params.ID)
	if err != nil {
		return nil, err
	}
	if t.Status.State.Terminal() {
		return nil, a2a.NewTaskNotCancelableError(t.ID, t.Status.State)
	}

	if q, running := h.queues.Get(t.ID); running && !q.IsClosed() {
		if err := h.executor.Cancel(ctx, t.ID); err != nil {
			return nil, a2a.NewInternalError(fmt.Sprintf("cancel task: %v", err))
		}
		return t, nil
	}

	canceled, err := h.aggregator.Process(ctx, a2a.NewStatusUpdateEvent(t.ID, t.ContextID, a2a.TaskStateCanceled, nil))
	if err != nil {
		return nil, a2a.NewInternalError(fmt.Sprintf("cancel task: %v", err))
	}
	h.logger.InfoContext(ctx, "canceled idle task", slog.String("task_id", t.ID))
	return canceled, nil
}

// OnMessageSend implements [RequestHandler].
//
// Returning on an interrupted state leaves the execution running: its remaining
// events are still persisted and can be read back with tasks/get.
func (h *DefaultRequestHandler) OnMessageSend(ctx context.Context, params *a2a.MessageSendParams) (a2a.Event, error) {
	events, err := h.OnMessageSendStream(ctx, params)
	if err != nil {
		return nil, err
	}

	var last a2a.Event
	for ev, err := range events {
		if err != nil {
			return nil, toJSONRPCError(err)
		}
		last = ev
		if a2a.IsFinalEvent(ev) || isInterrupted(ev) {
			break
		}
	}
	if last == nil {
		return nil, a2a.NewInternalError("agent produced no events")
	}
	if msg, ok := last.(*a2a.Message); ok {
		return msg, nil
	}

	t, err := h.loadTask(ctx, last.GetTaskID())
	if err != nil {
		return nil, err
	}
	var historyLength *int
	if params.Configuration != nil {
		historyLength = params.Configuration.HistoryLength
	}
	return trimHistory(t, historyLength), nil
}

// OnMessageSendStream implements [RequestHandler].
func (h *DefaultRequestHandler) OnMessageSendStream(ctx context.Context, params *a2a.MessageSendParams) (iter.Seq2[a2a.Event, error], error) {
	rc, queue, err := h.prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	return func(yield func(a2a.Event, error) bool) {
		ctx, span := h.tracer.Start(ctx, "a2a.handler."+a2a.MethodMessageStream, trace.WithAttributes(
			attribute.String("a2a.task_id", rc.TaskID()),
			attribute.String("a2a.context_id", rc.ContextID()),
		))
		defer span.End()

		done := make(chan struct{})
		defer close(done)
		events, consumer := h.execute(ctx, rc, queue, done)

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					if err := consumer.Err(); err != nil {
						span.RecordError(err)
						span.SetStatus(codes.Error, err.Error())
						yield(nil, err)
					}
					return
				}
				if !yield(ev, nil) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}, nil
}

// prepare validates params, registers the task's event queue and records the
// inbound message on an existing task. The queue is registered before the
// store is touched so a message for a running task leaves the task as is.
func (h *DefaultRequestHandler) prepare(ctx context.Context, params *a2a.MessageSendParams) (*agent_execution.RequestContext, *event.EventQueue, error) {
	if params == nil {
		return nil, nil, a2a.NewInvalidParamsError("params are required")
	}
	if err := params.Validate(); err != nil {
		return nil, nil, a2a.NewInvalidParamsError(err.Error())
	}
	msg := params.Message

	if msg.TaskID == "" {
		rc, err := h.builder.Build(ctx, params, nil)
		if err != nil {
			return nil, nil, a2a.NewInvalidParamsError(err.Error())
		}
		queue, err := h.createQueue(rc.TaskID())
		if err != nil {
			return nil, nil, err
		}
		return rc, queue, nil
	}

	queue, err := h.createQueue(msg.TaskID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := h.resume(ctx, params, msg)
	if err != nil {
		h.queues.Release(msg.TaskID, queue)
		return nil, nil, err
	}
	return rc, queue, nil
}

// resume appends msg to its stored task and builds the request context for it.
// The caller must own the task's queue.
func (h *DefaultRequestHandler) resume(ctx context.Context, params *a2a.MessageSendParams, msg *a2a.Message) (*agent_execution.RequestContext, error) {
	t, err := h.loadTask(ctx, msg.TaskID)
	if err != nil {
		return nil, err
	}
	if t.Status.State.Terminal() {
		return nil, a2a.NewInvalidRequestError(fmt.Sprintf("task %s is in terminal state %s", t.ID, t.Status.State))
	}

	appended := !t.HasMessage(msg.MessageID)
	if appended {
		t.History = append(t.History, msg)
	}
	rc, err := h.builder.Build(ctx, params, t)
	if err != nil {
		return nil, a2a.NewInvalidParamsError(err.Error())
	}
	if appended {
		if err := h.store.Save(ctx, t); err != nil {
			return nil, a2a.NewInternalError(fmt.Sprintf("save task: %v", err))
		}
	}
	return rc, nil
}

func (h *DefaultRequestHandler) createQueue(taskID string) (*event.EventQueue, error) {
	queue, err := h.queues.Create(taskID)
	if err != nil {
		if errors.Is(err, event.ErrQueueExists) {
			return nil, a2a.NewInvalidRequestError(fmt.Sprintf("task %s is already running", taskID))
		}
		return nil, a2a.NewInternalError(err.Error())
	}
	return queue, nil
}

// execute runs the executor detached from the caller and pumps its events
// through the aggregator. Events are forwarded on the returned channel until
// done is closed; after that the pump keeps persisting without forwarding.
func (h *DefaultRequestHandler) execute(ctx context.Context, rc *agent_execution.RequestContext, queue *event.EventQueue, done <-chan struct{}) (<-chan a2a.Event, *event.EventConsumer) {
	execCtx := context.WithoutCancel(ctx)
	consumer := event.NewEventConsumer(queue)
	logger := h.logger.With(slog.String("task_id", rc.TaskID()), slog.String("context_id", rc.ContextID()))

	executed := make(chan struct{})
	go func() {
		defer close(executed)
		defer queue.Close()
		if err := h.executor.Execute(execCtx, rc, queue); err != nil {
			logger.ErrorContext(execCtx, "agent execution failed", slog.Any("error", err))
			consumer.SetAgentTaskError(a2a.NewInternalError(err.Error()))
		}
	}()

	out := make(chan a2a.Event)
	go func() {
		defer close(out)

		forward := true
		for ev := range consumer.ConsumeAll(execCtx) {
			if _, err := h.aggregator.Process(execCtx, ev); err != nil {
				logger.ErrorContext(execCtx, "failed to persist event",
					slog.String("kind", string(ev.GetEventKind())),
					slog.Any("error", err),
				)
			}
			if !forward {
				continue
			}
			select {
			case out <- ev:
			case <-done:
				forward = false
			}
		}

		<-executed
		h.queues.Release(rc.TaskID(), queue)
	}()

	return out, consumer
}

func (h *DefaultRequestHandler) loadTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	t, err := h.store.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			return nil, a2a.NewTaskNotFoundError(taskID)
		}
		return nil, a2a.NewInternalError(fmt.Sprintf("load task: %v", err))
	}
	return t, nil
}

// trimHistory keeps the last n history messages when n is set.
func trimHistory(t *a2a.Task, n *int) *a2a.Task {
	if n == nil || *n < 0 || len(t.History) <= *n {
		return t
	}
	t.History = t.History[len(t.History)-*n:]
	return t
}

func isInterrupted(ev a2a.Event) bool {
	switch e := ev.(type) {
	case *a2a.TaskStatusUpdateEvent:
		return e.Status.State.Interrupted()
	case *a2a.Task:
		return e.Status.State.Interrupted()
	default:
		return false
	}
}

// toJSONRPCError maps err onto the protocol error it carries, or an internal error.
func toJSONRPCError(err error) *a2a.JSONRPCError {
	var rpcErr *a2a.JSONRPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return a2a.NewInternalError(err.Error())
}

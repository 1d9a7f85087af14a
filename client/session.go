// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/identity"
)

// Texts reported to the [Observer] during the authorization flow.
const (
	AuthorizationRequestedText = "Agent requested additional authorization."
	AuthorizationCancelledText = "Authorization cancelled - unable to proceed with the task."
	AuthorizationFailedText    = "Failed to accept OpenID4VP authorization request."
	MissingAuthMetadataText    = "Received 'auth-required' state, but no OID4VP In-Task Auth metadata is found in the event. Skipping..."
	disclosurePrompt           = "The following data will be shared with the agent: "
)

// NoticeLevel grades a [Session] notice.
type NoticeLevel int

// Notice levels.
const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

// Observer receives everything a [Session] reads and decides.
type Observer interface {
	// Event is called for every streamed event, before the session acts on it.
	Event(ctx context.Context, ev a2a.Event)
	// Notice reports a session decision in human readable form.
	Notice(ctx context.Context, level NoticeLevel, text string)
}

type nopObserver struct{}

func (nopObserver) Event(context.Context, a2a.Event)            {}
func (nopObserver) Notice(context.Context, NoticeLevel, string) {}

// Confirmer asks the user to approve sharing credentials.
type Confirmer interface {
	Confirm(ctx context.Context, description string) (bool, error)
}

// ConfirmerFunc adapts a function to [Confirmer].
type ConfirmerFunc func(ctx context.Context, description string) (bool, error)

// Confirm implements [Confirmer].
func (f ConfirmerFunc) Confirm(ctx context.Context, description string) (bool, error) {
	return f(ctx, description)
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithObserver sets the observer of a [Session].
func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		s.observer = o
	}
}

// WithSessionLogger sets the [*slog.Logger] for the [Session].
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session is a conversation with one agent. It tracks the current task and
// context across messages and answers auth-required interruptions by
// presenting credentials from a wallet.
type Session struct {
	client    *Client
	holder    identity.Holder
	confirmer Confirmer
	observer  Observer
	logger    *slog.Logger

	mu        sync.Mutex
	taskID    string
	contextID string
}

// NewSession returns a Session sending through c, presenting credentials with
// holder after confirmer approves.
func NewSession(c *Client, holder identity.Holder, confirmer Confirmer, opts ...SessionOption) *Session {
	s := &Session{
		client:    c,
		holder:    holder,
		confirmer: confirmer,
		observer:  nopObserver{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TaskID returns the tracked task ID, empty when no task is open.
func (s *Session) TaskID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskID
}

// ContextID returns the tracked context ID.
func (s *Session) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

// Reset forgets the tracked task and context.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskID, s.contextID = "", ""
}

// Send sends text as a user message on the tracked task and context and
// consumes the resulting stream. A transport or decode error ends this
// exchange only: it is returned and the tracked IDs are left as they were.
func (s *Session) Send(ctx context.Context, text string) error {
	msg := a2a.NewUserTextMessage(text)
	s.mu.Lock()
	msg.TaskID, msg.ContextID = s.taskID, s.contextID
	s.mu.Unlock()

	for ev, err := range s.client.SendMessageStream(ctx, &a2a.MessageSendParams{Message: msg}) {
		if err != nil {
			s.logger.ErrorContext(ctx, "message stream failed",
				slog.String("message_id", msg.MessageID),
				slog.Any("error", err),
			)
			return err
		}
		s.Consume(ctx, ev)
	}
	return nil
}

// Consume folds one streamed event into the session.
func (s *Session) Consume(ctx context.Context, ev a2a.Event) {
	s.observer.Event(ctx, ev)

	switch e := ev.(type) {
	case *a2a.Task:
		s.track(e.ID, e.ContextID)

	case *a2a.Message:
		s.track(e.TaskID, e.ContextID)

	case *a2a.TaskStatusUpdateEvent:
		if e.Status.State == a2a.TaskStateAuthRequired {
			s.authorize(ctx, e)
		}
		if e.Final && e.Status.State != a2a.TaskStateInputRequired {
			s.mu.Lock()
			s.taskID = ""
			s.mu.Unlock()
			s.observer.Notice(ctx, NoticeInfo, fmt.Sprintf("Task %s is final. Clearing current task ID.", e.TaskID))
		}
	}
}

// track adopts non-empty IDs announced by the agent.
func (s *Session) track(taskID, contextID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if taskID != "" {
		s.taskID = taskID
	}
	if contextID != "" {
		s.contextID = contextID
	}
}

// authorize answers an auth-required status. A declined or failed
// authorization is reported and the stream keeps being read, so the agent
// times the task out on its own.
func (s *Session) authorize(ctx context.Context, ev *a2a.TaskStatusUpdateEvent) {
	logger := s.logger.With(slog.String("task_id", ev.TaskID), slog.String("context_id", ev.ContextID))

	var md map[string]any
	if ev.Status.Message != nil {
		md = ev.Status.Message.Metadata
	}
	req, ok, err := a2a.AuthorizationRequestFromMetadata(md)
	if !ok || err != nil {
		logger.WarnContext(ctx, "auth-required without usable extension metadata", slog.Any("error", err))
		s.observer.Notice(ctx, NoticeWarning, MissingAuthMetadataText)
		return
	}
	s.observer.Notice(ctx, NoticeInfo, AuthorizationRequestedText)

	resolved, err := s.holder.ResolveAuthorizationRequest(ctx, req.RequestURI)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve authorization request",
			slog.String("request_uri", req.RequestURI),
			slog.Any("error", err),
		)
		s.observer.Notice(ctx, NoticeError, AuthorizationFailedText)
		return
	}

	disclosure, err := s.holder.SelectCredentialsForRequest(ctx, resolved.QueryResult)
	if err != nil {
		logger.ErrorContext(ctx, "no credentials for authorization request", slog.Any("error", err))
		s.observer.Notice(ctx, NoticeError, AuthorizationFailedText)
		return
	}

	confirmed, err := s.confirmer.Confirm(ctx, disclosurePrompt+disclosure.Describe())
	if err != nil {
		logger.WarnContext(ctx, "confirmation failed", slog.Any("error", err))
	}
	if !confirmed {
		logger.InfoContext(ctx, "authorization declined")
		s.observer.Notice(ctx, NoticeError, AuthorizationCancelledText)
		return
	}

	result, err := s.holder.AcceptAuthorizationRequest(ctx, identity.AcceptRequest{
		Request:    resolved,
		Disclosure: disclosure,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to submit presentation", slog.Any("error", err))
		s.observer.Notice(ctx, NoticeError, AuthorizationFailedText)
		return
	}
	if !result.OK {
		logger.ErrorContext(ctx, "verifier rejected presentation",
			slog.Int("status", result.StatusCode),
			slog.String("body", result.Body),
		)
		s.observer.Notice(ctx, NoticeError, AuthorizationFailedText)
		return
	}
	logger.InfoContext(ctx, "presentation accepted")
}

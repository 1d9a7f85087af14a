// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"crypto/ed25519"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/agent"
	"github.com/go-a2a/a2a-stepup/authz"
	"github.com/go-a2a/a2a-stepup/identity"
	"github.com/go-a2a/a2a-stepup/identity/oid4vp"
	"github.com/go-a2a/a2a-stepup/llm"
	"github.com/go-a2a/a2a-stepup/server/handler"
	"github.com/go-a2a/a2a-stepup/server/task"
)

const (
	testHolderSecret = "86213c3d7fc8d4d6754c7a0fd969598e"
	testIssuerSecret = "96213c3d7fc8d4d6754c7a0fd969598e"
)

type notice struct {
	level NoticeLevel
	text  string
}

type recordingObserver struct {
	mu      sync.Mutex
	events  []a2a.Event
	notices []notice
}

func (o *recordingObserver) Event(_ context.Context, ev a2a.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) Notice(_ context.Context, level NoticeLevel, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, notice{level: level, text: text})
}

func (o *recordingObserver) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events, o.notices = nil, nil
}

func (o *recordingObserver) hasNotice(level NoticeLevel, text string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Contains(o.notices, notice{level: level, text: text})
}

func (o *recordingObserver) finalStatus(t *testing.T) *a2a.TaskStatusUpdateEvent {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.events) == 0 {
		t.Fatal("no events observed")
	}
	su, ok := o.events[len(o.events)-1].(*a2a.TaskStatusUpdateEvent)
	if !ok || !su.Final {
		t.Fatalf("last event = %#v, want a final status update", o.events[len(o.events)-1])
	}
	return su
}

func (o *recordingObserver) kinds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return eventKinds(o.events)
}

type recordingConfirmer struct {
	answer bool

	mu     sync.Mutex
	prompt []string
}

func (c *recordingConfirmer) Confirm(_ context.Context, description string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompt = append(c.prompt, description)
	return c.answer, nil
}

func (c *recordingConfirmer) prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.prompt)
}

func mustKey(t *testing.T, secret string) ed25519.PrivateKey {
	t.Helper()
	key, err := oid4vp.KeyFromSecret(secret)
	if err != nil {
		t.Fatalf("KeyFromSecret() error = %v", err)
	}
	return key
}

// newStepUpAgent serves the sample agent and its verifier, and returns a
// client and a holder carrying the sample credential.
func newStepUpAgent(t *testing.T, authTimeout time.Duration) (*Client, *oid4vp.Holder) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var verifierHandler http.Handler = http.NotFoundHandler()
	verifierSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifierHandler.ServeHTTP(w, r)
	}))
	t.Cleanup(verifierSrv.Close)

	issuer, err := oid4vp.NewIssuer(oid4vp.SampleIssuerID, mustKey(t, testIssuerSecret))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	broker := identity.NewBroker()
	verifier, err := oid4vp.NewVerifier(oid4vp.VerifierConfig{
		BaseURL:        verifierSrv.URL + "/oid4vp",
		TrustedIssuers: map[string]ed25519.PublicKey{oid4vp.SampleIssuerID: issuer.PublicKey()},
		Publisher:      broker,
	})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	verifierHandler = verifier.Handler()

	correlator := authz.NewCorrelator(verifier)
	go correlator.Run(ctx, broker)

	completer := llm.CompleterFunc(func(_ context.Context, _ string, _ map[string]any, req *llm.Request) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		return &llm.Response{Text: "answer: " + last.Text()}, nil
	})
	exec := agent.NewExecutor(completer, correlator, agent.WithAuthTimeout(authTimeout))
	rh := handler.NewDefaultRequestHandler(exec, task.NewInMemoryStore())

	var agentHandler http.Handler = http.NotFoundHandler()
	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentHandler.ServeHTTP(w, r)
	}))
	t.Cleanup(agentSrv.Close)
	agentHandler = handler.NewJSONRPCHandler(agent.SampleAgentCard(agentSrv.URL+"/"), rh)

	holderKey := mustKey(t, testHolderSecret)
	compact, err := issuer.Issue(holderKey.Public().(ed25519.PublicKey), "SampleCredential", map[string]any{
		"name":       "John Doe",
		"university": "innsbruck",
		"degree":     "bachelor",
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	wallet := oid4vp.NewWallet()
	if _, err := wallet.Store(compact); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	holder, err := oid4vp.NewHolder(wallet, holderKey, oid4vp.WithHTTPClient(verifierSrv.Client()))
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}

	return New(agentSrv.URL+"/", WithHTTPClient(agentSrv.Client())), holder
}

func TestSession_AuthorizeAndAnswer(t *testing.T) {
	t.Parallel()

	c, holder := newStepUpAgent(t, 5*time.Second)
	obs := &recordingObserver{}
	confirmer := &recordingConfirmer{answer: true}
	s := NewSession(c, holder, confirmer, WithObserver(obs))

	if err := s.Send(t.Context(), "What is OID4VP?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := []string{"task", "status-update:auth-required", "status-update:working", "status-update:completed"}
	if diff := cmp.Diff(want, obs.kinds()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	if got := obs.finalStatus(t).Status.Message.Text(); got != "answer: What is OID4VP?" {
		t.Errorf("final text = %q, want the completer answer", got)
	}
	if diff := cmp.Diff([]string{"The following data will be shared with the agent: SampleCredential"}, confirmer.prompts()); diff != "" {
		t.Errorf("confirm prompts mismatch (-want +got):\n%s", diff)
	}
	if !obs.hasNotice(NoticeInfo, AuthorizationRequestedText) {
		t.Error("authorization request was not reported")
	}
	if s.TaskID() != "" {
		t.Errorf("TaskID() = %q after a final status, want empty", s.TaskID())
	}
	contextID := s.ContextID()
	if contextID == "" {
		t.Fatal("ContextID() is empty")
	}

	// the context stays authorized for the next task
	obs.reset()
	if err := s.Send(t.Context(), "And SD-JWT?"); err != nil {
		t.Fatalf("second Send() error = %v", err)
	}
	want = []string{"task", "status-update:working", "status-update:completed"}
	if diff := cmp.Diff(want, obs.kinds()); diff != "" {
		t.Errorf("second events mismatch (-want +got):\n%s", diff)
	}
	if got := s.ContextID(); got != contextID {
		t.Errorf("ContextID() = %q, want %q", got, contextID)
	}
	if n := len(confirmer.prompts()); n != 1 {
		t.Errorf("confirmations = %d, want 1", n)
	}
}

func TestSession_AuthorizationDeclined(t *testing.T) {
	t.Parallel()

	c, holder := newStepUpAgent(t, 200*time.Millisecond)
	obs := &recordingObserver{}
	s := NewSession(c, holder, &recordingConfirmer{answer: false}, WithObserver(obs))

	if err := s.Send(t.Context(), "What is OID4VP?"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	final := obs.finalStatus(t)
	if final.Status.State != a2a.TaskStateFailed || final.Status.Message.Text() != agent.AuthTimeoutText {
		t.Errorf("final status = %s %q, want failed %q", final.Status.State, final.Status.Message.Text(), agent.AuthTimeoutText)
	}
	if !obs.hasNotice(NoticeError, AuthorizationCancelledText) {
		t.Error("declined authorization was not reported")
	}
	if s.TaskID() != "" {
		t.Errorf("TaskID() = %q, want empty", s.TaskID())
	}
}

// stubHolder fails every step it is asked to perform.
type stubHolder struct {
	resolveErr error
}

func (h *stubHolder) ResolveAuthorizationRequest(context.Context, string) (*identity.ResolvedAuthorizationRequest, error) {
	return nil, h.resolveErr
}

func (h *stubHolder) SelectCredentialsForRequest(context.Context, identity.QueryResult) (identity.Disclosure, error) {
	return nil, errors.New("not implemented")
}

func (h *stubHolder) AcceptAuthorizationRequest(context.Context, identity.AcceptRequest) (*identity.AcceptResult, error) {
	return nil, errors.New("not implemented")
}

func TestSession_Consume(t *testing.T) {
	t.Parallel()

	authRequired := func(md map[string]any) *a2a.TaskStatusUpdateEvent {
		msg := a2a.NewAgentTextMessage("task-1", "ctx-1", agent.AuthRequiredText)
		msg.Metadata = md
		return a2a.NewStatusUpdateEvent("task-1", "ctx-1", a2a.TaskStateAuthRequired, msg)
	}

	tests := map[string]struct {
		events     []a2a.Event
		wantTaskID string
		wantNotice notice
	}{
		"success: input-required keeps the task": {
			events: []a2a.Event{
				&a2a.Task{ID: "task-1", ContextID: "ctx-1"},
				func() a2a.Event {
					ev := a2a.NewStatusUpdateEvent("task-1", "ctx-1", a2a.TaskStateInputRequired, nil)
					ev.Final = true
					return ev
				}(),
			},
			wantTaskID: "task-1",
		},
		"success: completed clears the task": {
			events: []a2a.Event{
				&a2a.Task{ID: "task-1", ContextID: "ctx-1"},
				func() a2a.Event {
					ev := a2a.NewStatusUpdateEvent("task-1", "ctx-1", a2a.TaskStateCompleted, nil)
					ev.Final = true
					return ev
				}(),
			},
			wantNotice: notice{level: NoticeInfo, text: "Task task-1 is final. Clearing current task ID."},
		},
		"error: auth-required without metadata": {
			events:     []a2a.Event{&a2a.Task{ID: "task-1", ContextID: "ctx-1"}, authRequired(nil)},
			wantTaskID: "task-1",
			wantNotice: notice{level: NoticeWarning, text: MissingAuthMetadataText},
		},
		"error: unresolvable request": {
			events: []a2a.Event{
				&a2a.Task{ID: "task-1", ContextID: "ctx-1"},
				authRequired(a2a.AuthorizationMetadata(a2a.AuthorizationRequest{ClientID: "verifier", RequestURI: "http://127.0.0.1:0/authorize/x"})),
			},
			wantTaskID: "task-1",
			wantNotice: notice{level: NoticeError, text: AuthorizationFailedText},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			obs := &recordingObserver{}
			s := NewSession(New("http://unused/"), &stubHolder{resolveErr: errors.New("unreachable")},
				ConfirmerFunc(func(context.Context, string) (bool, error) { return true, nil }),
				WithObserver(obs))

			for _, ev := range tt.events {
				s.Consume(t.Context(), ev)
			}

			if got := s.TaskID(); got != tt.wantTaskID {
				t.Errorf("TaskID() = %q, want %q", got, tt.wantTaskID)
			}
			if got := s.ContextID(); got != "ctx-1" {
				t.Errorf("ContextID() = %q, want ctx-1", got)
			}
			if tt.wantNotice != (notice{}) && !obs.hasNotice(tt.wantNotice.level, tt.wantNotice.text) {
				t.Errorf("notice %+v not reported, got %+v", tt.wantNotice, obs.notices)
			}
			if n := len(obs.events); n != len(tt.events) {
				t.Errorf("observed %d events, want %d", n, len(tt.events))
			}
		})
	}
}

func TestSession_SendTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	s := NewSession(New(srv.URL+"/", WithHTTPClient(srv.Client())), &stubHolder{}, ConfirmerFunc(func(context.Context, string) (bool, error) { return true, nil }))
	s.Consume(t.Context(), &a2a.Task{ID: "task-1", ContextID: "ctx-1"})

	err := s.Send(t.Context(), "hello")
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Send() error = %v, want HTTP 503", err)
	}
	if s.TaskID() != "task-1" || s.ContextID() != "ctx-1" {
		t.Errorf("ids = (%q, %q), want them untouched", s.TaskID(), s.ContextID())
	}
}

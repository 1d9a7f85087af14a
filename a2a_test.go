// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"
)

func TestTaskState_Terminal(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		state           TaskState
		wantTerminal    bool
		wantInterrupted bool
	}{
		"submitted":      {state: TaskStateSubmitted},
		"working":        {state: TaskStateWorking},
		"auth-required":  {state: TaskStateAuthRequired, wantInterrupted: true},
		"input-required": {state: TaskStateInputRequired, wantInterrupted: true},
		"completed":      {state: TaskStateCompleted, wantTerminal: true},
		"canceled":       {state: TaskStateCanceled, wantTerminal: true},
		"failed":         {state: TaskStateFailed, wantTerminal: true},
		"rejected":       {state: TaskStateRejected, wantTerminal: true},
		"unknown":        {state: TaskStateUnknown},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := tt.state.Terminal(); got != tt.wantTerminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.wantTerminal)
			}
			if got := tt.state.Interrupted(); got != tt.wantInterrupted {
				t.Errorf("Interrupted() = %v, want %v", got, tt.wantInterrupted)
			}
		})
	}
}

func TestNewStatusUpdateEvent_FinalFollowsState(t *testing.T) {
	t.Parallel()

	for _, state := range []TaskState{TaskStateSubmitted, TaskStateAuthRequired, TaskStateWorking} {
		if ev := NewStatusUpdateEvent("t", "c", state, nil); ev.Final {
			t.Errorf("NewStatusUpdateEvent(%s).Final = true, want false", state)
		}
	}
	for _, state := range []TaskState{TaskStateCompleted, TaskStateCanceled, TaskStateFailed} {
		ev := NewStatusUpdateEvent("t", "c", state, nil)
		if !ev.Final {
			t.Errorf("NewStatusUpdateEvent(%s).Final = false, want true", state)
		}
		if ev.Kind != StatusUpdateEventKind {
			t.Errorf("Kind = %q, want %q", ev.Kind, StatusUpdateEventKind)
		}
		if ev.Status.Timestamp == "" {
			t.Error("status timestamp is empty")
		}
	}
}

func TestAgentCard_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		card    AgentCard
		wantErr bool
	}{
		"success: minimal card": {
			card: AgentCard{Name: "Sample Agent", URL: "http://localhost:10003/", Version: "1.0.0"},
		},
		"error: missing name": {
			card:    AgentCard{URL: "http://localhost:10003/", Version: "1.0.0"},
			wantErr: true,
		},
		"error: skill without id": {
			card: AgentCard{
				Name: "Sample Agent", URL: "http://localhost:10003/", Version: "1.0.0",
				Skills: []AgentSkill{{Name: "no id"}},
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := tt.card.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAgentCard_SupportsExtension(t *testing.T) {
	t.Parallel()

	card := AgentCard{Capabilities: AgentCapabilities{
		Extensions: []AgentExtension{NewInTaskOID4VPExtension()},
	}}
	if !card.SupportsExtension(InTaskOID4VPExtensionURI) {
		t.Error("SupportsExtension() = false, want true")
	}
	if card.SupportsExtension("https://example.com/other") {
		t.Error("SupportsExtension(other) = true, want false")
	}
}

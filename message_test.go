// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestParts_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data    string
		want    Parts
		wantErr bool
	}{
		"success: mixed parts": {
			data: `[
				{"kind":"text","text":"hello"},
				{"kind":"file","file":{"name":"a.pdf","mimeType":"application/pdf","uri":"https://example.com/a.pdf"}},
				{"kind":"data","data":{"n":1}}
			]`,
			want: Parts{
				&TextPart{Kind: TextPartKind, Text: "hello"},
				&FilePart{Kind: FilePartKind, File: FileContent{Name: "a.pdf", MimeType: "application/pdf", URI: "https://example.com/a.pdf"}},
				&DataPart{Kind: DataPartKind, Data: map[string]any{"n": float64(1)}},
			},
		},
		"success: empty": {
			data: `[]`,
			want: Parts{},
		},
		"error: unknown kind": {
			data:    `[{"kind":"video"}]`,
			wantErr: true,
		},
		"error: not an array": {
			data:    `{"kind":"text"}`,
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got Parts
			err := json.Unmarshal([]byte(tt.data), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMessage_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		msg     Message
		wantErr bool
	}{
		"success: user text": {
			msg: *NewUserTextMessage("hi"),
		},
		"success: no parts": {
			msg: Message{MessageID: "m1", Role: RoleAgent},
		},
		"error: empty id": {
			msg:     Message{Role: RoleUser},
			wantErr: true,
		},
		"error: bad role": {
			msg:     Message{MessageID: "m1", Role: "model"},
			wantErr: true,
		},
		"error: nil part": {
			msg:     Message{MessageID: "m1", Role: RoleUser, Parts: Parts{nil}},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if err := tt.msg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessage_Text(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Parts: Parts{
			NewTextPart("first"),
			&FilePart{Kind: FilePartKind, File: FileContent{URI: "https://example.com/x"}},
			NewTextPart("second"),
		},
	}
	if got, want := msg.Text(), "first\nsecond"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}

	var nilMsg *Message
	if got := nilMsg.Text(); got != "" {
		t.Errorf("nil Text() = %q, want empty", got)
	}
}

func TestNewAgentTextMessage(t *testing.T) {
	t.Parallel()

	msg := NewAgentTextMessage("task-1", "ctx-1", "Thinking...")
	if msg.MessageID == "" {
		t.Fatal("MessageID is empty")
	}
	want := &Message{
		Kind:      MessageEventKind,
		MessageID: msg.MessageID,
		Role:      RoleAgent,
		Parts:     Parts{NewTextPart("Thinking...")},
		TaskID:    "task-1",
		ContextID: "ctx-1",
	}
	if diff := cmp.Diff(want, msg); diff != "" {
		t.Errorf("message mismatch (-want +got):\n%s", diff)
	}
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// Part is one typed piece of message or artifact content.
type Part interface {
	PartKind() PartKind
}

// TextPart represents a text segment within parts.
type TextPart struct {
	// Part type - text for TextParts
	Kind PartKind `json:"kind"`
	// Text content
	Text string `json:"text"`
	// Optional metadata associated with the part.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// PartKind implements [Part].
func (*TextPart) PartKind() PartKind { return TextPartKind }

// NewTextPart returns a [TextPart] holding text.
func NewTextPart(text string) *TextPart {
	return &TextPart{Kind: TextPartKind, Text: text}
}

// FileContent holds either inline base64 bytes or a URI pointing at the file.
type FileContent struct {
	// Optional name for the file
	Name string `json:"name,omitzero"`
	// Optional mimeType for the file
	MimeType string `json:"mimeType,omitzero"`
	// base64 encoded content of the file
	Bytes string `json:"bytes,omitzero"`
	// URL for the File content
	URI string `json:"uri,omitzero"`
}

// FilePart represents a File segment within parts.
type FilePart struct {
	// Part type - file for FileParts
	Kind PartKind `json:"kind"`
	// File content either as url or bytes
	File FileContent `json:"file"`
	// Optional metadata associated with the part.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// PartKind implements [Part].
func (*FilePart) PartKind() PartKind { return FilePartKind }

// DataPart represents a structured data segment within a message part.
type DataPart struct {
	// Part type - data for DataParts
	Kind PartKind `json:"kind"`
	// Structured data content
	Data map[string]any `json:"data"`
	// Optional metadata associated with the part.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// PartKind implements [Part].
func (*DataPart) PartKind() PartKind { return DataPartKind }

// Parts is an ordered list of [Part] values that decodes by the "kind" member.
type Parts []Part

// UnmarshalJSON implements [json.Unmarshaler].
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raws []jsontext.Value
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}

	out := make(Parts, 0, len(raws))
	for i, raw := range raws {
		part, err := unmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		out = append(out, part)
	}
	*ps = out

	return nil
}

func unmarshalPart(raw jsontext.Value) (Part, error) {
	var probe struct {
		Kind PartKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	var part Part
	switch probe.Kind {
	case TextPartKind:
		part = &TextPart{}
	case FilePartKind:
		part = &FilePart{}
	case DataPartKind:
		part = &DataPart{}
	default:
		return nil, fmt.Errorf("unknown part kind %q", probe.Kind)
	}
	if err := json.Unmarshal(raw, part); err != nil {
		return nil, err
	}

	return part, nil
}

// Message represents a single message exchanged between user and agent.
type Message struct {
	// Event type
	Kind EventKind `json:"kind"`
	// Identifier created by the message creator
	MessageID string `json:"messageId"`
	// Message sender's role
	Role Role `json:"role"`
	// Message content
	Parts Parts `json:"parts"`
	// Identifier of task the message is related to
	TaskID string `json:"taskId,omitzero"`
	// The context the message is associated with
	ContextID string `json:"contextId,omitzero"`
	// URIs of extensions that are present or contributed to this Message.
	Extensions []string `json:"extensions,omitzero"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

var _ Event = (*Message)(nil)

// GetEventKind implements [Event].
func (m *Message) GetEventKind() EventKind { return MessageEventKind }

// GetTaskID implements [Event].
func (m *Message) GetTaskID() string { return m.TaskID }

// GetContextID implements [Event].
func (m *Message) GetContextID() string { return m.ContextID }

// Validate reports whether m is well formed.
func (m *Message) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}
	if m.Role != RoleAgent && m.Role != RoleUser {
		return fmt.Errorf("invalid message role: %q", m.Role)
	}
	for i, part := range m.Parts {
		if part == nil {
			return fmt.Errorf("message part at index %d cannot be nil", i)
		}
	}
	return nil
}

// NewUserTextMessage creates a user message containing a single [TextPart].
func NewUserTextMessage(text string) *Message {
	return &Message{
		Kind:      MessageEventKind,
		MessageID: uuid.NewString(),
		Role:      RoleUser,
		Parts:     Parts{NewTextPart(text)},
	}
}

// NewAgentTextMessage creates an agent message containing a single [TextPart] bound
// to the given task and context.
func NewAgentTextMessage(taskID, contextID, text string) *Message {
	return &Message{
		Kind:      MessageEventKind,
		MessageID: uuid.NewString(),
		Role:      RoleAgent,
		Parts:     Parts{NewTextPart(text)},
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// TextParts returns the text of every [TextPart] in parts.
func TextParts(parts Parts) []string {
	var texts []string
	for _, part := range parts {
		if tp, ok := part.(*TextPart); ok {
			texts = append(texts, tp.Text)
		}
	}
	return texts
}

// Text joins all text content of m with newlines.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	return strings.Join(TextParts(m.Parts), "\n")
}

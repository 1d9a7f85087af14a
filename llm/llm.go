// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the completion backend used by the agent and a registry
// of named prompts.
package llm

import (
	"context"
	"strings"
)

// Role is the author of a conversation turn as seen by the backend.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is one piece of message content.
type Part struct {
	Text string `json:"text"`
}

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content []Part `json:"content"`
}

// Text joins the text of every part of m.
func (m Message) Text() string {
	var b strings.Builder
	for i, p := range m.Content {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// Request is the conversation handed to a prompt.
type Request struct {
	Messages []Message `json:"messages"`
}

// Response is the backend answer.
type Response struct {
	Text string `json:"text"`
}

// Completer runs a named prompt over a conversation.
type Completer interface {
	// Complete renders prompt with input and completes req.
	Complete(ctx context.Context, prompt string, input map[string]any, req *Request) (*Response, error)
}

// CompleterFunc adapts a function to [Completer].
type CompleterFunc func(ctx context.Context, prompt string, input map[string]any, req *Request) (*Response, error)

// Complete implements [Completer].
func (f CompleterFunc) Complete(ctx context.Context, prompt string, input map[string]any, req *Request) (*Response, error) {
	return f(ctx, prompt, input, req)
}

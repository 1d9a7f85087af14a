// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai implements [llm.Completer] on top of an OpenAI compatible
// Chat Completions API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/go-a2a/a2a-stepup/llm"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-3.5-turbo"
	DefaultTimeout = 60 * time.Second
)

// Config describes how to reach the Chat Completions API.
type Config struct {
	APIKey  string
	BaseURL string
	// Model is used for prompts that do not name one.
	Model   string
	Timeout time.Duration
	// Prompts defaults to [llm.DefaultRegistry].
	Prompts    *llm.Registry
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the Chat Completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	prompts    *llm.Registry
	httpClient *http.Client
	logger     *slog.Logger
}

var _ llm.Completer = (*Client)(nil)

// NewClient returns a Client for cfg.
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	prompts := cfg.Prompts
	if prompts == nil {
		var err error
		if prompts, err = llm.DefaultRegistry(); err != nil {
			return nil, fmt.Errorf("openai: load prompts: %w", err)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		prompts:    prompts,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitzero"`
	MaxTokens   int           `json:"max_tokens,omitzero"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete implements [llm.Completer]. An empty completion is returned as an
// empty text, not an error.
func (c *Client) Complete(ctx context.Context, prompt string, input map[string]any, req *llm.Request) (*llm.Response, error) {
	p, err := c.prompts.Lookup(prompt)
	if err != nil {
		return nil, err
	}
	payload, err := c.buildPayload(p, input, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("completion failed with status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("completion failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.UnmarshalRead(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("completion has no choices")
	}

	c.logger.DebugContext(ctx, "completion finished",
		slog.String("prompt", prompt),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &llm.Response{Text: strings.TrimSpace(decoded.Choices[0].Message.Content)}, nil
}

func (c *Client) buildPayload(p *llm.Prompt, input map[string]any, req *llm.Request) ([]byte, error) {
	system, err := p.Render(input)
	if err != nil {
		return nil, err
	}

	body := chatRequest{
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages:    []chatMessage{{Role: "system", Content: system}},
	}
	if body.Model == "" {
		body.Model = c.model
	}
	if req != nil {
		for _, m := range req.Messages {
			body.Messages = append(body.Messages, chatMessage{Role: chatRole(m.Role), Content: m.Text()})
		}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}
	return encoded, nil
}

func chatRole(r llm.Role) string {
	if r == llm.RoleModel {
		return "assistant"
	}
	return "user"
}

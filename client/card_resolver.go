// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-json-experiment/json"

	a2a "github.com/go-a2a/a2a-stepup"
)

// CardResolver fetches agent cards relative to an agent's base URL.
type CardResolver struct {
	hc      *http.Client
	baseURL string
}

// NewCardResolver returns a resolver for the agent at baseURL. A nil hc uses
// [http.DefaultClient].
func NewCardResolver(baseURL string, hc *http.Client) *CardResolver {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &CardResolver{
		hc:      hc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// GetAgentCard fetches the card at relativeCardPath. When relativeCardPath is
// empty the well-known path is tried first and the legacy path second.
func (r *CardResolver) GetAgentCard(ctx context.Context, relativeCardPath string) (*a2a.AgentCard, error) {
	if relativeCardPath != "" {
		return r.fetch(ctx, relativeCardPath)
	}

	card, err := r.fetch(ctx, a2a.AgentCardWellKnownPath)
	var herr *HTTPError
	if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
		return r.fetch(ctx, a2a.LegacyAgentCardWellKnownPath)
	}
	return card, err
}

func (r *CardResolver) fetch(ctx context.Context, relativeCardPath string) (*a2a.AgentCard, error) {
	targetURL := r.baseURL + "/" + strings.TrimLeft(relativeCardPath, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}

	var card a2a.AgentCard
	if err := json.UnmarshalRead(resp.Body, &card); err != nil {
		return nil, fmt.Errorf("decode agent card: %w", err)
	}
	return &card, nil
}

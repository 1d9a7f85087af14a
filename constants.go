// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

// A2A protocol paths.
const (
	// AgentCardWellKnownPath is the standard path for retrieving an agent's public AgentCard.
	AgentCardWellKnownPath = "/.well-known/agent-card.json"

	// LegacyAgentCardWellKnownPath is the card path used by earlier protocol revisions.
	LegacyAgentCardWellKnownPath = "/.well-known/agent.json"

	// DefaultRPCURL is the default URL path for the A2A JSON-RPC endpoint.
	DefaultRPCURL = "/"
)

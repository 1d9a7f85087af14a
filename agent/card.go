// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	a2a "github.com/go-a2a/a2a-stepup"
)

// DefaultURL is where the sample agent is served by default.
const DefaultURL = "http://localhost:10003/"

// SampleAgentCard returns the card of the sample agent served at url. An empty
// url means [DefaultURL].
func SampleAgentCard(url string) *a2a.AgentCard {
	if url == "" {
		url = DefaultURL
	}

	return &a2a.AgentCard{
		Name:        "Sample Agent",
		Description: "A sample agent that can answer questions about decentralized identity.",
		URL:         url,
		Provider: &a2a.AgentProvider{
			Organization: "A2A Samples",
			URL:          "https://example.com/a2a-samples",
		},
		Version:         "1.0.0",
		ProtocolVersion: a2a.Version,
		Capabilities: a2a.AgentCapabilities{
			Streaming:  true,
			Extensions: []a2a.AgentExtension{a2a.NewInTaskOID4VPExtension()},
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{{
			ID:          "assistant",
			Name:        "Advising on decentralized identity",
			Description: "Answers questions about decentralized identity",
			Tags:        []string{"assistant"},
			Examples:    []string{"What is OID4VP?"},
			InputModes:  []string{"text"},
			OutputModes: []string{"text"},
		}},
	}
}

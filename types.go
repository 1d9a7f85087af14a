// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"
)

// AgentProvider represents the service provider of an agent.
type AgentProvider struct {
	// Agent provider's organization name.
	Organization string `json:"organization"`
	// Agent provider's URL.
	URL string `json:"url"`
}

// AgentExtension declares an extension supported by an agent.
type AgentExtension struct {
	// The URI of the extension.
	URI string `json:"uri"`
	// A description of how this agent uses this extension.
	Description string `json:"description,omitzero"`
	// Whether the client must follow specific requirements of the extension.
	Required bool `json:"required,omitzero"`
	// Optional configuration for the extension.
	Params map[string]any `json:"params,omitzero"`
}

// AgentCapabilities defines optional capabilities supported by an agent.
type AgentCapabilities struct {
	// true if the agent supports SSE.
	Streaming bool `json:"streaming,omitzero"`
	// true if the agent can notify updates to client.
	PushNotifications bool `json:"pushNotifications,omitzero"`
	// true if the agent exposes status change history for tasks.
	StateTransitionHistory bool `json:"stateTransitionHistory,omitzero"`
	// extensions supported by this agent.
	Extensions []AgentExtension `json:"extensions,omitzero"`
}

// AgentSkill represents a unit of capability that an agent can perform.
type AgentSkill struct {
	// Unique identifier for the agent's skill.
	ID string `json:"id"`
	// Human readable name of the skill.
	Name string `json:"name"`
	// Description of the skill.
	Description string `json:"description"`
	// Set of tagwords describing classes of capabilities for this specific skill.
	Tags []string `json:"tags"`
	// The set of example scenarios that the skill can perform.
	Examples []string `json:"examples,omitzero"`
	// The set of interaction modes that the skill supports.
	InputModes []string `json:"inputModes,omitzero"`
	// Supported media types for output.
	OutputModes []string `json:"outputModes,omitzero"`
}

// AgentCard conveys key information about an agent.
type AgentCard struct {
	// Human readable name of the agent.
	Name string `json:"name"`
	// A human-readable description of the agent.
	Description string `json:"description"`
	// A URL to the address the agent is hosted at.
	URL string `json:"url"`
	// The service provider of the agent.
	Provider *AgentProvider `json:"provider,omitzero"`
	// The version of the agent.
	Version string `json:"version"`
	// The version of the A2A protocol this agent supports.
	ProtocolVersion string `json:"protocolVersion"`
	// Optional capabilities supported by the agent.
	Capabilities AgentCapabilities `json:"capabilities"`
	// The set of interaction modes that the agent supports across all skills.
	DefaultInputModes []string `json:"defaultInputModes"`
	// Supported media types for output.
	DefaultOutputModes []string `json:"defaultOutputModes"`
	// Skills are a unit of capability that an agent can perform.
	Skills []AgentSkill `json:"skills"`
	// true if the agent supports providing an extended agent card when the user is authenticated.
	SupportsAuthenticatedExtendedCard bool `json:"supportsAuthenticatedExtendedCard,omitzero"`
}

// Validate reports whether the card carries its required members.
func (c *AgentCard) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("agent card name cannot be empty")
	}
	if c.URL == "" {
		return fmt.Errorf("agent card URL cannot be empty")
	}
	if c.Version == "" {
		return fmt.Errorf("agent card version cannot be empty")
	}
	for i, skill := range c.Skills {
		if skill.ID == "" {
			return fmt.Errorf("skill at index %d has no ID", i)
		}
	}
	return nil
}

// SupportsExtension reports whether the card declares the extension uri.
func (c *AgentCard) SupportsExtension(uri string) bool {
	for _, ext := range c.Capabilities.Extensions {
		if ext.URI == uri {
			return true
		}
	}
	return false
}

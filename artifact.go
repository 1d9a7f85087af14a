// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"maps"
	"slices"
)

// Artifact represents an output generated during a task.
type Artifact struct {
	// Unique identifier for the artifact.
	ArtifactID string `json:"artifactId"`
	// Optional name for the artifact.
	Name string `json:"name,omitzero"`
	// Optional description for the artifact.
	Description string `json:"description,omitzero"`
	// Artifact parts.
	Parts Parts `json:"parts"`
	// Extension metadata.
	Metadata map[string]any `json:"metadata,omitzero"`
}

// Clone returns a copy of a whose part list and metadata can be mutated independently.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Parts = slices.Clone(a.Parts)
	c.Metadata = maps.Clone(a.Metadata)
	return &c
}

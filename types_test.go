// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestAgentCard_MarshalMinimal(t *testing.T) {
	t.Parallel()

	card := &AgentCard{
		Name:            "a",
		Description:     "d",
		URL:             "http://localhost:10003/",
		Version:         "1.0.0",
		ProtocolVersion: "0.3.0",
	}
	got, err := json.Marshal(card)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"name":"a","description":"d","url":"http://localhost:10003/","version":"1.0.0",` +
		`"protocolVersion":"0.3.0","capabilities":{},"defaultInputModes":[],"defaultOutputModes":[],"skills":[]}`
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("Marshal() mismatch (-want +got):\n%s", diff)
	}
}

func TestAgentCard_UnmarshalExtensions(t *testing.T) {
	t.Parallel()

	data := `{
		"name": "Sample Agent",
		"description": "answers questions",
		"url": "http://localhost:10003/",
		"version": "1.0.0",
		"protocolVersion": "0.3.0",
		"capabilities": {
			"streaming": true,
			"extensions": [{
				"uri": "` + InTaskOID4VPExtensionURI + `",
				"params": {"oid4vpVersions": ["1.0"]}
			}]
		},
		"defaultInputModes": ["text"],
		"defaultOutputModes": ["text"],
		"skills": [{"id": "qa", "name": "Q&A", "description": "answers", "tags": ["qa"]}]
	}`

	var card AgentCard
	if err := json.Unmarshal([]byte(data), &card); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if err := card.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if !card.Capabilities.Streaming {
		t.Error("Streaming = false, want true")
	}
	if !card.SupportsExtension(InTaskOID4VPExtensionURI) {
		t.Error("SupportsExtension() = false, want true")
	}
	want := []AgentSkill{{ID: "qa", Name: "Q&A", Description: "answers", Tags: []string{"qa"}}}
	if diff := cmp.Diff(want, card.Skills); diff != "" {
		t.Errorf("Skills mismatch (-want +got):\n%s", diff)
	}
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package a2a

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// InTaskOID4VPExtensionURI identifies the in-task OpenID for Verifiable Presentations
// authorization extension. Message metadata entries under this key carry an
// [InTaskAuthMetadata].
const InTaskOID4VPExtensionURI = "https://github.com/DSRCorporation/a2a-oid4vp-in-task-auth-extension/tree/main/v1"

// AuthorizationRequest is an OID4VP authorization request passed by reference.
type AuthorizationRequest struct {
	ClientID   string `json:"client_id"`
	RequestURI string `json:"request_uri"`
}

// InTaskAuthMetadata is the metadata value stored under [InTaskOID4VPExtensionURI].
type InTaskAuthMetadata struct {
	AuthorizationRequest AuthorizationRequest `json:"authorizationRequest"`
}

// NewInTaskOID4VPExtension returns the agent card declaration of the extension.
func NewInTaskOID4VPExtension() AgentExtension {
	return AgentExtension{
		URI:         InTaskOID4VPExtensionURI,
		Description: "Provides an option to use OpenID for Verifiable Presentations (OID4VP) for In-Task Authentication",
		Required:    false,
		Params: map[string]any{
			"oid4vpVersions": []string{"1.0"},
		},
	}
}

// AuthorizationMetadata returns message metadata carrying req under the extension key.
func AuthorizationMetadata(req AuthorizationRequest) map[string]any {
	return map[string]any{
		InTaskOID4VPExtensionURI: InTaskAuthMetadata{AuthorizationRequest: req},
	}
}

// AuthorizationRequestFromMetadata extracts the authorization request from message
// metadata. It accepts both the typed value and the generic map produced by decoding
// a message off the wire. ok is false when the extension entry is absent.
func AuthorizationRequestFromMetadata(md map[string]any) (req *AuthorizationRequest, ok bool, err error) {
	v, ok := md[InTaskOID4VPExtensionURI]
	if !ok || v == nil {
		return nil, false, nil
	}

	var meta InTaskAuthMetadata
	switch v := v.(type) {
	case InTaskAuthMetadata:
		meta = v
	case *InTaskAuthMetadata:
		meta = *v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, true, fmt.Errorf("encode extension metadata: %w", err)
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil, true, fmt.Errorf("decode extension metadata: %w", err)
		}
	}

	if meta.AuthorizationRequest.RequestURI == "" {
		return nil, true, fmt.Errorf("extension metadata has no request_uri")
	}

	return &meta.AuthorizationRequest, true, nil
}

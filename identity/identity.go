// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity defines the boundary to the wallet and verifier subsystem
// that performs OpenID for Verifiable Presentations exchanges.
//
// The agent side uses [VerifierService] to open verification sessions and an
// [EventSource] to learn when a presentation was verified. The client side uses a
// [Holder] to answer authorization requests from its wallet.
package identity

import (
	"context"
	"slices"
	"strings"
	"time"
)

// SessionState is the state of a verification session.
type SessionState string

// Verification session states.
const (
	StateRequestCreated      SessionState = "RequestCreated"
	StateRequestURIRetrieved SessionState = "RequestUriRetrieved"
	StateResponseVerified    SessionState = "ResponseVerified"
	StateError               SessionState = "Error"
)

// ContextIDTag is the session tag key holding the A2A context the session
// authorizes.
const ContextIDTag = "contextId"

// ResponseMode selects how the wallet returns its response.
type ResponseMode string

// ResponseModeDirectPost makes the wallet POST the response to the verifier.
const ResponseModeDirectPost ResponseMode = "direct_post"

// Credential formats.
const (
	FormatSDJWTVC = "vc+sd-jwt"
)

// Verifier is a verifier identity registered with the service.
type Verifier struct {
	ID        string    `json:"verifierId"`
	CreatedAt time.Time `json:"createdAt"`
}

// VerificationSession tracks one authorization request from creation to verdict.
type VerificationSession struct {
	ID           string            `json:"id"`
	VerifierID   string            `json:"verifierId"`
	State        SessionState      `json:"state"`
	ClientID     string            `json:"clientId"`
	RequestURI   string            `json:"requestUri"`
	Nonce        string            `json:"nonce"`
	Query        CredentialQuery   `json:"dcqlQuery"`
	Tags         map[string]string `json:"tags,omitzero"`
	Claims       map[string]any    `json:"claims,omitzero"`
	ErrorMessage string            `json:"errorMessage,omitzero"`
	CreatedAt    time.Time         `json:"createdAt"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

// Tag returns the value of the session tag key.
func (s *VerificationSession) Tag(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.Tags[key]
	return v, ok
}

// CredentialQuery is a Digital Credentials Query Language query.
type CredentialQuery struct {
	Credentials []CredentialQueryItem `json:"credentials"`
}

// CredentialQueryItem requests one credential.
type CredentialQueryItem struct {
	ID     string         `json:"id"`
	Format string         `json:"format"`
	Meta   CredentialMeta `json:"meta"`
	Claims []ClaimQuery   `json:"claims,omitzero"`
}

// CredentialMeta restricts the credential type.
type CredentialMeta struct {
	VCTValues []string `json:"vct_values,omitzero"`
}

// ClaimQuery names a claim by its path within the credential.
type ClaimQuery struct {
	Path []string `json:"path"`
}

// AuthorizationRequestOptions configures [VerifierService.CreateAuthorizationRequest].
type AuthorizationRequestOptions struct {
	VerifierID   string
	ResponseMode ResponseMode
	Query        CredentialQuery
}

// AuthorizationRequestResult is a newly created authorization request.
type AuthorizationRequestResult struct {
	ClientID   string
	RequestURI string
	Session    *VerificationSession
}

// SessionStateChangedEvent reports a verification session transition.
type SessionStateChangedEvent struct {
	Session       *VerificationSession `json:"session"`
	PreviousState SessionState         `json:"previousState,omitzero"`
}

// VerifierService is the verifier side of the identity subsystem.
type VerifierService interface {
	// GetAllVerifiers lists the registered verifiers.
	GetAllVerifiers(ctx context.Context) ([]Verifier, error)
	// CreateVerifier registers a new verifier.
	CreateVerifier(ctx context.Context) (*Verifier, error)
	// CreateAuthorizationRequest opens a verification session.
	CreateAuthorizationRequest(ctx context.Context, opts AuthorizationRequestOptions) (*AuthorizationRequestResult, error)
	// TagSession attaches a key/value tag to a session.
	TagSession(ctx context.Context, sessionID, key, value string) error
}

// EventSource delivers session state changes. The returned channel is closed
// once ctx is done.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan SessionStateChangedEvent, error)
}

// Publisher emits session state changes.
type Publisher interface {
	Publish(ctx context.Context, ev SessionStateChangedEvent) error
}

// Credential is a credential held in a wallet.
type Credential struct {
	ID      string         `json:"id"`
	Format  string         `json:"format"`
	VCT     string         `json:"vct"`
	Issuer  string         `json:"iss"`
	Compact string         `json:"compact"`
	Claims  map[string]any `json:"claims"`
}

// ResolvedAuthorizationRequest is a verified request object together with the
// wallet's answer to its query.
type ResolvedAuthorizationRequest struct {
	ClientID     string
	ResponseURI  string
	ResponseMode ResponseMode
	Nonce        string
	State        string
	Query        CredentialQuery
	QueryResult  QueryResult
}

// QueryResult lists, per query credential ID, the wallet credentials that satisfy it.
type QueryResult struct {
	CanBeSatisfied bool
	Matches        map[string][]*Credential
	// Claims lists the requested claim paths per query credential ID.
	Claims map[string][][]string
}

// SelectedCredential is a credential chosen for presentation.
type SelectedCredential struct {
	Credential *Credential
	ClaimPaths [][]string
}

// Disclosure maps query credential IDs to the credentials that will be presented.
type Disclosure map[string]*SelectedCredential

// Describe names what will be shared, for display to the user.
func (d Disclosure) Describe() string {
	ids := make([]string, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return strings.Join(ids, ", ")
}

// AcceptRequest is the input of [Holder.AcceptAuthorizationRequest].
type AcceptRequest struct {
	Request    *ResolvedAuthorizationRequest
	Disclosure Disclosure
}

// AcceptResult is the verifier's answer to a submitted presentation.
type AcceptResult struct {
	OK         bool
	StatusCode int
	Body       string
}

// Holder is the wallet side of the identity subsystem.
type Holder interface {
	// ResolveAuthorizationRequest fetches and verifies the request object at requestURI.
	ResolveAuthorizationRequest(ctx context.Context, requestURI string) (*ResolvedAuthorizationRequest, error)
	// SelectCredentialsForRequest picks one credential per query entry.
	SelectCredentialsForRequest(ctx context.Context, result QueryResult) (Disclosure, error)
	// AcceptAuthorizationRequest presents the selected credentials.
	AcceptAuthorizationRequest(ctx context.Context, req AcceptRequest) (*AcceptResult, error)
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package oid4vp

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/go-a2a/a2a-stepup/identity"
)

// keyBindingType is the JOSE typ of a key-binding JWT.
const keyBindingType = "kb+jwt"

// maxRequestObjectSize bounds fetched request objects.
const maxRequestObjectSize = 64 << 10

// requestObject is the payload of a signed authorization request.
type requestObject struct {
	ClientID       string                   `json:"client_id"`
	ResponseURI    string                   `json:"response_uri"`
	ResponseType   string                   `json:"response_type"`
	ResponseMode   identity.ResponseMode    `json:"response_mode"`
	Nonce          string                   `json:"nonce"`
	State          string                   `json:"state"`
	DCQLQuery      identity.CredentialQuery `json:"dcql_query"`
	ClientMetadata struct {
		JWKSURI string `json:"jwks_uri"`
	} `json:"client_metadata"`
	Exp int64 `json:"exp"`
}

// HolderOption configures a [Holder].
type HolderOption func(*Holder)

// WithHTTPClient sets the client used to reach verifiers.
func WithHTTPClient(c *http.Client) HolderOption {
	return func(h *Holder) { h.client = c }
}

// WithHolderLogger sets the logger.
func WithHolderLogger(l *slog.Logger) HolderOption {
	return func(h *Holder) { h.logger = l }
}

// Holder answers authorization requests from a [Wallet].
type Holder struct {
	wallet *Wallet
	key    ed25519.PrivateKey
	kid    string
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

var _ identity.Holder = (*Holder)(nil)

// NewHolder returns a Holder presenting credentials from wallet with key.
func NewHolder(wallet *Wallet, key ed25519.PrivateKey, opts ...HolderOption) (*Holder, error) {
	kid, err := KeyID(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	h := &Holder{
		wallet: wallet,
		key:    key,
		kid:    kid,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// PublicKey returns the key credentials must be bound to.
func (h *Holder) PublicKey() ed25519.PublicKey {
	return h.key.Public().(ed25519.PublicKey)
}

// ResolveAuthorizationRequest implements [identity.Holder]. The request object
// signature is checked against the keys published at its client_metadata.jwks_uri.
func (h *Holder) ResolveAuthorizationRequest(ctx context.Context, requestURI string) (*identity.ResolvedAuthorizationRequest, error) {
	signed, err := h.fetchRequestObject(ctx, requestURI)
	if err != nil {
		return nil, err
	}

	msg, err := jws.Parse(signed)
	if err != nil {
		return nil, fmt.Errorf("parse request object: %w", err)
	}
	var obj requestObject
	if err := json.Unmarshal(msg.Payload(), &obj); err != nil {
		return nil, fmt.Errorf("decode request object: %w", err)
	}
	if obj.ClientMetadata.JWKSURI == "" {
		return nil, fmt.Errorf("request object has no jwks_uri")
	}

	set, err := jwk.Fetch(ctx, obj.ClientMetadata.JWKSURI, jwk.WithHTTPClient(h.client))
	if err != nil {
		return nil, fmt.Errorf("fetch verifier keys: %w", err)
	}
	if _, err := jws.Verify(signed, jws.WithKeySet(set)); err != nil {
		return nil, fmt.Errorf("verify request object: %w", err)
	}

	if obj.Exp != 0 && h.now().After(time.Unix(obj.Exp, 0)) {
		return nil, fmt.Errorf("request object expired")
	}
	if obj.ResponseMode != identity.ResponseModeDirectPost {
		return nil, fmt.Errorf("unsupported response mode %q", obj.ResponseMode)
	}
	if obj.ResponseURI == "" || obj.Nonce == "" {
		return nil, fmt.Errorf("request object lacks response_uri or nonce")
	}

	return &identity.ResolvedAuthorizationRequest{
		ClientID:     obj.ClientID,
		ResponseURI:  obj.ResponseURI,
		ResponseMode: obj.ResponseMode,
		Nonce:        obj.Nonce,
		State:        obj.State,
		Query:        obj.DCQLQuery,
		QueryResult:  h.wallet.Query(obj.DCQLQuery),
	}, nil
}

func (h *Holder) fetchRequestObject(ctx context.Context, requestURI string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURI, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/"+requestObjectType)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch request object: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestObjectSize))
	if err != nil {
		return nil, fmt.Errorf("read request object: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch request object: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return body, nil
}

// SelectCredentialsForRequest implements [identity.Holder]. The first match of
// every query entry is selected.
func (h *Holder) SelectCredentialsForRequest(ctx context.Context, result identity.QueryResult) (identity.Disclosure, error) {
	if !result.CanBeSatisfied {
		return nil, fmt.Errorf("the wallet holds no credentials satisfying the request")
	}

	d := make(identity.Disclosure, len(result.Matches))
	for id, matches := range result.Matches {
		d[id] = &identity.SelectedCredential{
			Credential: matches[0],
			ClaimPaths: result.Claims[id],
		}
	}
	return d, nil
}

// AcceptAuthorizationRequest implements [identity.Holder]. It posts one
// key-bound presentation per disclosed credential to the response URI.
func (h *Holder) AcceptAuthorizationRequest(ctx context.Context, in identity.AcceptRequest) (*identity.AcceptResult, error) {
	if in.Request == nil {
		return nil, fmt.Errorf("authorization request is required")
	}
	if len(in.Disclosure) == 0 {
		return nil, fmt.Errorf("nothing to disclose")
	}

	vpToken := make(map[string][]string, len(in.Disclosure))
	for id, sel := range in.Disclosure {
		kb, err := h.keyBinding(in.Request)
		if err != nil {
			return nil, err
		}
		vpToken[id] = []string{sel.Credential.Compact + "~" + kb}
	}
	token, err := json.Marshal(vpToken)
	if err != nil {
		return nil, fmt.Errorf("encode vp_token: %w", err)
	}

	form := url.Values{}
	form.Set("vp_token", string(token))
	form.Set("state", in.Request.State)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.Request.ResponseURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build response: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit response: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxRequestObjectSize))

	result := &identity.AcceptResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
	h.logger.InfoContext(ctx, "submitted presentation",
		slog.String("response_uri", in.Request.ResponseURI),
		slog.Int("status", resp.StatusCode),
	)
	return result, nil
}

func (h *Holder) keyBinding(req *identity.ResolvedAuthorizationRequest) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"nonce": req.Nonce,
		"aud":   req.ClientID,
		"iat":   h.now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode key binding: %w", err)
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.TypeKey, keyBindingType); err != nil {
		return "", err
	}
	if err := hdrs.Set(jws.KeyIDKey, h.kid); err != nil {
		return "", err
	}

	signed, err := jws.Sign(payload, jws.WithKey(jwa.EdDSA(), h.key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", fmt.Errorf("sign key binding: %w", err)
	}
	return string(signed), nil
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package oid4vp

import (
	"context"
	"crypto/ed25519"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/go-a2a/a2a-stepup/identity"
)

const (
	testHolderSecret = "86213c3d7fc8d4d6754c7a0fd969598e"
	testIssuerSecret = "96213c3d7fc8d4d6754c7a0fd969598e"
)

var sampleQuery = identity.CredentialQuery{
	Credentials: []identity.CredentialQueryItem{{
		ID:     "SampleCredential",
		Format: identity.FormatSDJWTVC,
		Meta:   identity.CredentialMeta{VCTValues: []string{"SampleCredential"}},
		Claims: []identity.ClaimQuery{{Path: []string{"name"}}},
	}},
}

func mustKey(t *testing.T, secret string) ed25519.PrivateKey {
	t.Helper()
	key, err := KeyFromSecret(secret)
	if err != nil {
		t.Fatalf("KeyFromSecret() error = %v", err)
	}
	return key
}

type fixture struct {
	verifier *Verifier
	holder   *Holder
	events   <-chan identity.SessionStateChangedEvent
}

func newFixture(t *testing.T, trusted map[string]ed25519.PublicKey) *fixture {
	t.Helper()

	var handler http.Handler = http.NotFoundHandler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	broker := identity.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	events, err := broker.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	verifier, err := NewVerifier(VerifierConfig{
		BaseURL:        srv.URL + "/oid4vp",
		TrustedIssuers: trusted,
		Publisher:      broker,
	})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	handler = verifier.Handler()

	issuer, err := NewIssuer(SampleIssuerID, mustKey(t, testIssuerSecret))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	holderKey := mustKey(t, testHolderSecret)
	compact, err := issuer.Issue(holderKey.Public().(ed25519.PublicKey), "SampleCredential", map[string]any{
		"name":       "John Doe",
		"university": "innsbruck",
		"degree":     "bachelor",
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	wallet := NewWallet()
	if _, err := wallet.Store(compact); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	holder, err := NewHolder(wallet, holderKey, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewHolder() error = %v", err)
	}

	return &fixture{verifier: verifier, holder: holder, events: events}
}

func (f *fixture) nextEvent(t *testing.T) identity.SessionStateChangedEvent {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no session event")
		return identity.SessionStateChangedEvent{}
	}
}

func (f *fixture) openRequest(t *testing.T, contextID string) *identity.AuthorizationRequestResult {
	t.Helper()
	ctx := t.Context()

	rec, err := f.verifier.CreateVerifier(ctx)
	if err != nil {
		t.Fatalf("CreateVerifier() error = %v", err)
	}
	res, err := f.verifier.CreateAuthorizationRequest(ctx, identity.AuthorizationRequestOptions{
		VerifierID:   rec.ID,
		ResponseMode: identity.ResponseModeDirectPost,
		Query:        sampleQuery,
	})
	if err != nil {
		t.Fatalf("CreateAuthorizationRequest() error = %v", err)
	}
	if err := f.verifier.TagSession(ctx, res.Session.ID, identity.ContextIDTag, contextID); err != nil {
		t.Fatalf("TagSession() error = %v", err)
	}
	return res
}

func TestPresentationFlow(t *testing.T) {
	t.Parallel()

	issuerKey := mustKey(t, testIssuerSecret)
	f := newFixture(t, map[string]ed25519.PublicKey{SampleIssuerID: issuerKey.Public().(ed25519.PublicKey)})
	ctx := t.Context()

	res := f.openRequest(t, "ctx-1")
	if ev := f.nextEvent(t); ev.Session.State != identity.StateRequestCreated {
		t.Fatalf("first event state = %s, want %s", ev.Session.State, identity.StateRequestCreated)
	}

	resolved, err := f.holder.ResolveAuthorizationRequest(ctx, res.RequestURI)
	if err != nil {
		t.Fatalf("ResolveAuthorizationRequest() error = %v", err)
	}
	if resolved.ClientID != res.ClientID {
		t.Errorf("client_id = %q, want %q", resolved.ClientID, res.ClientID)
	}
	if !resolved.QueryResult.CanBeSatisfied {
		t.Fatal("query cannot be satisfied by the wallet")
	}
	if ev := f.nextEvent(t); ev.Session.State != identity.StateRequestURIRetrieved || ev.PreviousState != identity.StateRequestCreated {
		t.Fatalf("second event = %s from %s", ev.Session.State, ev.PreviousState)
	}

	disclosure, err := f.holder.SelectCredentialsForRequest(ctx, resolved.QueryResult)
	if err != nil {
		t.Fatalf("SelectCredentialsForRequest() error = %v", err)
	}
	if got := disclosure.Describe(); got != "SampleCredential" {
		t.Errorf("Describe() = %q, want SampleCredential", got)
	}

	result, err := f.holder.AcceptAuthorizationRequest(ctx, identity.AcceptRequest{Request: resolved, Disclosure: disclosure})
	if err != nil {
		t.Fatalf("AcceptAuthorizationRequest() error = %v", err)
	}
	if !result.OK {
		t.Fatalf("AcceptAuthorizationRequest() not ok: %d %s", result.StatusCode, result.Body)
	}

	ev := f.nextEvent(t)
	if ev.Session.State != identity.StateResponseVerified {
		t.Fatalf("final state = %s (%s), want %s", ev.Session.State, ev.Session.ErrorMessage, identity.StateResponseVerified)
	}
	if got, _ := ev.Session.Tag(identity.ContextIDTag); got != "ctx-1" {
		t.Errorf("contextId tag = %q, want ctx-1", got)
	}
	want := map[string]any{"SampleCredential": map[string]any{"name": "John Doe"}}
	if diff := cmp.Diff(want, ev.Session.Claims); diff != "" {
		t.Errorf("disclosed claims mismatch (-want +got):\n%s", diff)
	}

	// a verified session does not accept a second response
	again, err := f.holder.AcceptAuthorizationRequest(ctx, identity.AcceptRequest{Request: resolved, Disclosure: disclosure})
	if err != nil {
		t.Fatalf("second AcceptAuthorizationRequest() error = %v", err)
	}
	if again.OK {
		t.Error("replayed response was accepted")
	}
}

func TestPresentationFlow_UntrustedIssuer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := t.Context()

	res := f.openRequest(t, "ctx-1")
	f.nextEvent(t)

	resolved, err := f.holder.ResolveAuthorizationRequest(ctx, res.RequestURI)
	if err != nil {
		t.Fatalf("ResolveAuthorizationRequest() error = %v", err)
	}
	f.nextEvent(t)
	disclosure, err := f.holder.SelectCredentialsForRequest(ctx, resolved.QueryResult)
	if err != nil {
		t.Fatalf("SelectCredentialsForRequest() error = %v", err)
	}

	result, err := f.holder.AcceptAuthorizationRequest(ctx, identity.AcceptRequest{Request: resolved, Disclosure: disclosure})
	if err != nil {
		t.Fatalf("AcceptAuthorizationRequest() error = %v", err)
	}
	if result.OK || result.StatusCode != http.StatusBadRequest {
		t.Errorf("result = %+v, want rejected with 400", result)
	}
	if ev := f.nextEvent(t); ev.Session.State != identity.StateError {
		t.Errorf("state = %s, want %s", ev.Session.State, identity.StateError)
	}
}

func TestHolder_ResolveUnknownSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if _, err := f.holder.ResolveAuthorizationRequest(t.Context(), f.verifier.endpoint("authorize", "missing")); err == nil {
		t.Error("ResolveAuthorizationRequest() error = nil, want not found")
	}
}

func TestVerifier_CreateAuthorizationRequest(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(VerifierConfig{BaseURL: "http://localhost:3001/oid4vp"})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	rec, err := v.CreateVerifier(t.Context())
	if err != nil {
		t.Fatalf("CreateVerifier() error = %v", err)
	}

	tests := map[string]struct {
		opts    identity.AuthorizationRequestOptions
		wantErr bool
	}{
		"success": {
			opts: identity.AuthorizationRequestOptions{VerifierID: rec.ID, ResponseMode: identity.ResponseModeDirectPost, Query: sampleQuery},
		},
		"error: unknown verifier": {
			opts:    identity.AuthorizationRequestOptions{VerifierID: "nope", ResponseMode: identity.ResponseModeDirectPost, Query: sampleQuery},
			wantErr: true,
		},
		"error: unsupported response mode": {
			opts:    identity.AuthorizationRequestOptions{VerifierID: rec.ID, ResponseMode: "fragment", Query: sampleQuery},
			wantErr: true,
		},
		"error: empty query": {
			opts:    identity.AuthorizationRequestOptions{VerifierID: rec.ID, ResponseMode: identity.ResponseModeDirectPost},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := v.CreateAuthorizationRequest(t.Context(), tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateAuthorizationRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			wantURI := "http://localhost:3001/oid4vp/authorize/" + res.Session.ID
			if res.RequestURI != wantURI {
				t.Errorf("RequestURI = %q, want %q", res.RequestURI, wantURI)
			}
			if res.Session.State != identity.StateRequestCreated {
				t.Errorf("State = %s, want %s", res.Session.State, identity.StateRequestCreated)
			}
		})
	}
}

func TestEvaluateQuery(t *testing.T) {
	t.Parallel()

	sample := &identity.Credential{
		Format: identity.FormatSDJWTVC,
		VCT:    "SampleCredential",
		Claims: map[string]any{"name": "John Doe", "address": map[string]any{"city": "Innsbruck"}},
	}
	other := &identity.Credential{Format: identity.FormatSDJWTVC, VCT: "Other", Claims: map[string]any{"name": "x"}}

	tests := map[string]struct {
		query     identity.CredentialQuery
		creds     []*identity.Credential
		wantOK    bool
		wantCount int
	}{
		"success: sample credential": {
			query: sampleQuery, creds: []*identity.Credential{other, sample}, wantOK: true, wantCount: 1,
		},
		"success: nested claim path": {
			query: identity.CredentialQuery{Credentials: []identity.CredentialQueryItem{{
				ID: "q", Format: identity.FormatSDJWTVC, Claims: []identity.ClaimQuery{{Path: []string{"address", "city"}}},
			}}},
			creds: []*identity.Credential{sample, other}, wantOK: true, wantCount: 1,
		},
		"error: vct mismatch": {
			query: sampleQuery, creds: []*identity.Credential{other},
		},
		"error: missing claim": {
			query: identity.CredentialQuery{Credentials: []identity.CredentialQueryItem{{
				ID: "q", Claims: []identity.ClaimQuery{{Path: []string{"degree"}}},
			}}},
			creds: []*identity.Credential{sample},
		},
		"error: empty query": {},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := EvaluateQuery(tt.query, tt.creds)
			if got.CanBeSatisfied != tt.wantOK {
				t.Errorf("CanBeSatisfied = %v, want %v", got.CanBeSatisfied, tt.wantOK)
			}
			n := 0
			for _, m := range got.Matches {
				n += len(m)
			}
			if n != tt.wantCount {
				t.Errorf("matches = %d, want %d", n, tt.wantCount)
			}
		})
	}
}

func TestDisclose(t *testing.T) {
	t.Parallel()

	claims := map[string]any{
		"name":    "John Doe",
		"degree":  "bachelor",
		"address": map[string]any{"city": "Innsbruck", "zip": "6020"},
	}
	got := disclose(claims, [][]string{{"name"}, {"address", "city"}, {"missing"}})
	want := map[string]any{"name": "John Doe", "address": map[string]any{"city": "Innsbruck"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("disclose() mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyFromSecret(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		secret  string
		wantErr bool
	}{
		"success: holder secret": {secret: testHolderSecret},
		"error: short secret":    {secret: "abc", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			key, err := KeyFromSecret(tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("KeyFromSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			again, _ := KeyFromSecret(tt.secret)
			if !key.Equal(again) {
				t.Error("KeyFromSecret() is not deterministic")
			}
		})
	}
}

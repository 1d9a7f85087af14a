// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package oid4vp

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/lestrrat-go/jwx/v3/jws"

	"github.com/go-a2a/a2a-stepup/identity"
)

// Wallet holds credentials for a holder.
type Wallet struct {
	mu    sync.RWMutex
	creds []*identity.Credential
}

// NewWallet returns an empty wallet.
func NewWallet() *Wallet {
	return &Wallet{}
}

// Store parses a compact credential and adds it to the wallet. The signature is
// not checked: the verifier does that at presentation time.
func (w *Wallet) Store(compact string) (*identity.Credential, error) {
	msg, err := jws.Parse([]byte(compact))
	if err != nil {
		return nil, fmt.Errorf("parse credential: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("decode credential payload: %w", err)
	}

	cred, err := credentialFromClaims(compact, payload)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.creds = append(w.creds, cred)
	w.mu.Unlock()

	return cred, nil
}

// Credentials returns the stored credentials.
func (w *Wallet) Credentials() []*identity.Credential {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.creds)
}

// Query evaluates q against the wallet.
func (w *Wallet) Query(q identity.CredentialQuery) identity.QueryResult {
	return EvaluateQuery(q, w.Credentials())
}

// EvaluateQuery matches every query entry against creds. A credential matches
// when its format and type are accepted and every requested claim path resolves.
func EvaluateQuery(q identity.CredentialQuery, creds []*identity.Credential) identity.QueryResult {
	result := identity.QueryResult{
		CanBeSatisfied: len(q.Credentials) > 0,
		Matches:        make(map[string][]*identity.Credential, len(q.Credentials)),
		Claims:         make(map[string][][]string, len(q.Credentials)),
	}

	for _, item := range q.Credentials {
		paths := make([][]string, 0, len(item.Claims))
		for _, c := range item.Claims {
			paths = append(paths, c.Path)
		}
		result.Claims[item.ID] = paths

		for _, cred := range creds {
			if matchesQuery(item, cred) {
				result.Matches[item.ID] = append(result.Matches[item.ID], cred)
			}
		}
		if len(result.Matches[item.ID]) == 0 {
			result.CanBeSatisfied = false
		}
	}

	return result
}

func matchesQuery(item identity.CredentialQueryItem, cred *identity.Credential) bool {
	if item.Format != "" && item.Format != cred.Format {
		return false
	}
	if len(item.Meta.VCTValues) > 0 && !slices.Contains(item.Meta.VCTValues, cred.VCT) {
		return false
	}
	for _, c := range item.Claims {
		if _, ok := claimAt(cred.Claims, c.Path); !ok {
			return false
		}
	}
	return true
}

// claimAt resolves a claim path through nested objects.
func claimAt(claims map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var cur any = claims
	for _, seg := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// disclose copies the claims at paths into a new object, keeping their nesting.
func disclose(claims map[string]any, paths [][]string) map[string]any {
	out := make(map[string]any)
	for _, path := range paths {
		v, ok := claimAt(claims, path)
		if !ok {
			continue
		}
		dst := out
		for _, seg := range path[:len(path)-1] {
			next, ok := dst[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				dst[seg] = next
			}
			dst = next
		}
		dst[path[len(path)-1]] = v
	}
	return out
}

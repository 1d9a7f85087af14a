// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-a2a/a2a-stepup/identity/oid4vp"
)

// sampleClaims are the subject claims of the provisioned credential.
var sampleClaims = map[string]any{
	"name":       "John Doe",
	"university": "innsbruck",
	"degree":     "bachelor",
}

// provisionHolder returns a holder whose wallet carries a SampleCredential
// signed by the sample issuer. Nil arguments keep the holder defaults.
func provisionHolder(hc *http.Client, logger *slog.Logger) (*oid4vp.Holder, error) {
	holderKey, err := oid4vp.KeyFromSecret(oid4vp.SampleHolderSecret)
	if err != nil {
		return nil, fmt.Errorf("holder key: %w", err)
	}
	issuerKey, err := oid4vp.KeyFromSecret(oid4vp.SampleIssuerSecret)
	if err != nil {
		return nil, fmt.Errorf("issuer key: %w", err)
	}

	issuer, err := oid4vp.NewIssuer(oid4vp.SampleIssuerID, issuerKey)
	if err != nil {
		return nil, err
	}
	compact, err := issuer.Issue(holderKey.Public().(ed25519.PublicKey), "SampleCredential", sampleClaims)
	if err != nil {
		return nil, err
	}

	wallet := oid4vp.NewWallet()
	if _, err := wallet.Store(compact); err != nil {
		return nil, err
	}

	var opts []oid4vp.HolderOption
	if logger != nil {
		opts = append(opts, oid4vp.WithHolderLogger(logger))
	}
	if hc != nil {
		opts = append(opts, oid4vp.WithHTTPClient(hc))
	}
	return oid4vp.NewHolder(wallet, holderKey, opts...)
}

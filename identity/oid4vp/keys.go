// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package oid4vp is a compact OpenID for Verifiable Presentations verifier and
// holder used to exercise in-task authorization end to end.
//
// Credentials are issuer-signed JWTs carrying the holder key in cnf.jwk. A
// presentation is the credential followed by "~" and a key-binding JWT signed by
// the holder over the verifier nonce and client ID. Selective disclosure hashing
// is not implemented: the verifier only reveals the requested claims.
package oid4vp

import (
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// KeyFromSecret derives an Ed25519 key from a 32 byte secret used as the seed.
func KeyFromSecret(secret string) (ed25519.PrivateKey, error) {
	if len(secret) != ed25519.SeedSize {
		return nil, fmt.Errorf("secret must be %d bytes, got %d", ed25519.SeedSize, len(secret))
	}
	return ed25519.NewKeyFromSeed([]byte(secret)), nil
}

// PublicJWK returns the public JWK of pub with its RFC 7638 thumbprint as key ID.
func PublicJWK(pub ed25519.PublicKey) (jwk.Key, error) {
	key, err := jwk.Import(pub)
	if err != nil {
		return nil, fmt.Errorf("import public key: %w", err)
	}
	thumb, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("thumbprint: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, base64.RawURLEncoding.EncodeToString(thumb)); err != nil {
		return nil, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA()); err != nil {
		return nil, err
	}
	return key, nil
}

// KeyID returns the thumbprint key ID of pub.
func KeyID(pub ed25519.PublicKey) (string, error) {
	key, err := PublicJWK(pub)
	if err != nil {
		return "", err
	}
	kid, ok := key.KeyID()
	if !ok {
		return "", fmt.Errorf("key has no kid")
	}
	return kid, nil
}

// confirmationKey is the cnf.jwk claim binding a credential to its holder.
func confirmationKey(pub ed25519.PublicKey) map[string]any {
	return map[string]any{
		"kty": "OKP",
		"crv": "Ed25519",
		"x":   base64.RawURLEncoding.EncodeToString(pub),
	}
}

// holderKeyFromClaims extracts the holder key from a credential's cnf.jwk claim.
func holderKeyFromClaims(claims map[string]any) (ed25519.PublicKey, error) {
	cnf, ok := claims["cnf"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("credential has no cnf claim")
	}
	key, ok := cnf["jwk"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("credential cnf has no jwk")
	}
	if key["kty"] != "OKP" || key["crv"] != "Ed25519" {
		return nil, fmt.Errorf("unsupported holder key %v/%v", key["kty"], key["crv"])
	}
	x, _ := key["x"].(string)
	raw, err := base64.RawURLEncoding.DecodeString(x)
	if err != nil {
		return nil, fmt.Errorf("decode holder key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("holder key has %d bytes", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

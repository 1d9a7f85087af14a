// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package oid4vp

import (
	"crypto/ed25519"
	"fmt"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/go-a2a/a2a-stepup/identity"
)

// SampleIssuerID is the issuer identifier used by the sample credential.
const SampleIssuerID = "https://example.com/a2a-samples/issuer"

// Key seeds of the sample issuer and holder. For demonstrations only.
const (
	SampleIssuerSecret = "96213c3d7fc8d4d6754c7a0fd969598e"
	SampleHolderSecret = "86213c3d7fc8d4d6754c7a0fd969598e"
)

// credentialType is the JOSE typ of an issued credential.
const credentialType = "vc+sd-jwt"

// reservedClaims are registered JWT claims that are not credential subject data.
var reservedClaims = []string{"iss", "sub", "aud", "iat", "nbf", "exp", "jti", "vct", "cnf"}

// Issuer signs holder-bound credentials.
type Issuer struct {
	id  string
	key ed25519.PrivateKey
	kid string
	now func() time.Time
}

// NewIssuer returns an Issuer identified as id signing with key.
func NewIssuer(id string, key ed25519.PrivateKey) (*Issuer, error) {
	if id == "" {
		return nil, fmt.Errorf("issuer id cannot be empty")
	}
	kid, err := KeyID(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Issuer{id: id, key: key, kid: kid, now: time.Now}, nil
}

// ID returns the issuer identifier.
func (i *Issuer) ID() string { return i.id }

// PublicKey returns the key credentials are verified with.
func (i *Issuer) PublicKey() ed25519.PublicKey {
	return i.key.Public().(ed25519.PublicKey)
}

// Issue signs a credential of type vct over claims, bound to holder.
func (i *Issuer) Issue(holder ed25519.PublicKey, vct string, claims map[string]any) (string, error) {
	payload := jwt.MapClaims{}
	maps.Copy(payload, claims)
	payload["iss"] = i.id
	payload["iat"] = i.now().Unix()
	payload["jti"] = ulid.Make().String()
	payload["vct"] = vct
	payload["cnf"] = map[string]any{"jwk": confirmationKey(holder)}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, payload)
	token.Header["typ"] = credentialType
	token.Header["kid"] = i.kid

	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// credentialFromClaims builds the wallet view of a decoded credential payload.
func credentialFromClaims(compact string, payload map[string]any) (*identity.Credential, error) {
	vct, _ := payload["vct"].(string)
	if vct == "" {
		return nil, fmt.Errorf("credential has no vct")
	}
	iss, _ := payload["iss"].(string)
	id, _ := payload["jti"].(string)
	if id == "" {
		id = ulid.Make().String()
	}

	subject := maps.Clone(payload)
	for _, k := range reservedClaims {
		delete(subject, k)
	}

	return &identity.Credential{
		ID:      id,
		Format:  identity.FormatSDJWTVC,
		VCT:     vct,
		Issuer:  iss,
		Compact: compact,
		Claims:  subject,
	}, nil
}

// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package oid4vp

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/oklog/ulid/v2"

	"github.com/go-a2a/a2a-stepup/identity"
)

// DefaultRequestTTL bounds how long a verification session accepts a response.
const DefaultRequestTTL = 5 * time.Minute

// requestObjectType is the JOSE typ of a signed authorization request.
const requestObjectType = "oauth-authz-req+jwt"

// ErrSessionNotFound is returned for unknown verification sessions.
var ErrSessionNotFound = errors.New("verification session not found")

// VerifierConfig configures a [Verifier].
type VerifierConfig struct {
	// BaseURL is the public URL the verifier routes are served under,
	// for example http://localhost:3001/oid4vp.
	BaseURL string
	// SigningKey signs request objects. A key is generated when nil.
	SigningKey ed25519.PrivateKey
	// TrustedIssuers maps issuer identifiers to their credential keys.
	TrustedIssuers map[string]ed25519.PublicKey
	// Publisher receives every session state change. Optional.
	Publisher identity.Publisher
	// RequestTTL defaults to DefaultRequestTTL.
	RequestTTL time.Duration
	Logger     *slog.Logger
}

// Verifier is an in-memory [identity.VerifierService] with an HTTP surface for
// wallets.
type Verifier struct {
	baseURL    *url.URL
	key        ed25519.PrivateKey
	kid        string
	jwks       jwk.Set
	trusted    map[string]ed25519.PublicKey
	publisher  identity.Publisher
	requestTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.Mutex
	verifiers []identity.Verifier
	sessions  map[string]*identity.VerificationSession
}

var _ identity.VerifierService = (*Verifier)(nil)

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid verifier base URL %q", cfg.BaseURL)
	}

	key := cfg.SigningKey
	if key == nil {
		if _, key, err = ed25519.GenerateKey(rand.Reader); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	pub, err := PublicJWK(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	kid, _ := pub.KeyID()
	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, fmt.Errorf("build jwks: %w", err)
	}

	v := &Verifier{
		baseURL:    base,
		key:        key,
		kid:        kid,
		jwks:       set,
		trusted:    maps.Clone(cfg.TrustedIssuers),
		publisher:  cfg.Publisher,
		requestTTL: cfg.RequestTTL,
		logger:     cfg.Logger,
		now:        time.Now,
		sessions:   make(map[string]*identity.VerificationSession),
	}
	if v.requestTTL <= 0 {
		v.requestTTL = DefaultRequestTTL
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}

	return v, nil
}

// GetAllVerifiers implements [identity.VerifierService].
func (v *Verifier) GetAllVerifiers(ctx context.Context) ([]identity.Verifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]identity.Verifier, len(v.verifiers))
	copy(out, v.verifiers)
	return out, nil
}

// CreateVerifier implements [identity.VerifierService].
func (v *Verifier) CreateVerifier(ctx context.Context) (*identity.Verifier, error) {
	rec := identity.Verifier{ID: ulid.Make().String(), CreatedAt: v.now().UTC()}

	v.mu.Lock()
	v.verifiers = append(v.verifiers, rec)
	v.mu.Unlock()

	v.logger.InfoContext(ctx, "created verifier", slog.String("verifier_id", rec.ID))
	return &rec, nil
}

// CreateAuthorizationRequest implements [identity.VerifierService].
func (v *Verifier) CreateAuthorizationRequest(ctx context.Context, opts identity.AuthorizationRequestOptions) (*identity.AuthorizationRequestResult, error) {
	if opts.ResponseMode != identity.ResponseModeDirectPost {
		return nil, fmt.Errorf("unsupported response mode %q", opts.ResponseMode)
	}
	if len(opts.Query.Credentials) == 0 {
		return nil, fmt.Errorf("credential query is empty")
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	known := false
	for _, rec := range v.verifiers {
		if rec.ID == opts.VerifierID {
			known = true
			break
		}
	}
	if !known {
		v.mu.Unlock()
		return nil, fmt.Errorf("unknown verifier %q", opts.VerifierID)
	}

	now := v.now().UTC()
	id := ulid.Make().String()
	session := &identity.VerificationSession{
		ID:         id,
		VerifierID: opts.VerifierID,
		State:      identity.StateRequestCreated,
		ClientID:   "redirect_uri:" + v.endpoint("response", id),
		RequestURI: v.endpoint("authorize", id),
		Nonce:      nonce,
		Query:      opts.Query,
		Tags:       make(map[string]string),
		CreatedAt:  now,
		ExpiresAt:  now.Add(v.requestTTL),
	}
	v.sessions[id] = session
	snapshot := cloneSession(session)
	v.mu.Unlock()

	v.logger.InfoContext(ctx, "created authorization request", slog.String("session_id", id))
	v.publish(ctx, snapshot, "")

	return &identity.AuthorizationRequestResult{
		ClientID:   snapshot.ClientID,
		RequestURI: snapshot.RequestURI,
		Session:    snapshot,
	}, nil
}

// TagSession implements [identity.VerifierService].
func (v *Verifier) TagSession(ctx context.Context, sessionID, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	session, ok := v.sessions[sessionID]
	if !ok {
		return fmt.Errorf("tag session %s: %w", sessionID, ErrSessionNotFound)
	}
	session.Tags[key] = value
	return nil
}

// Session returns a snapshot of a verification session.
func (v *Verifier) Session(sessionID string) (*identity.VerificationSession, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	session, ok := v.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// RequestObject returns the signed request object of a session and moves it to
// [identity.StateRequestURIRetrieved].
func (v *Verifier) RequestObject(ctx context.Context, sessionID string) (string, error) {
	v.mu.Lock()
	session, ok := v.sessions[sessionID]
	if !ok {
		v.mu.Unlock()
		return "", ErrSessionNotFound
	}
	if session.State != identity.StateRequestCreated && session.State != identity.StateRequestURIRetrieved {
		v.mu.Unlock()
		return "", fmt.Errorf("session %s is %s", sessionID, session.State)
	}
	prev := session.State
	session.State = identity.StateRequestURIRetrieved
	snapshot := cloneSession(session)
	v.mu.Unlock()

	claims := jwt.MapClaims{
		"iss":           snapshot.ClientID,
		"aud":           "https://self-issued.me/v2",
		"client_id":     snapshot.ClientID,
		"response_uri":  v.endpoint("response", sessionID),
		"response_type": "vp_token",
		"response_mode": string(identity.ResponseModeDirectPost),
		"nonce":         snapshot.Nonce,
		"state":         snapshot.ID,
		"dcql_query":    snapshot.Query,
		"client_metadata": map[string]any{
			"jwks_uri": v.endpoint("jwks"),
			"vp_formats_supported": map[string]any{
				identity.FormatSDJWTVC: map[string]any{"alg_values": []string{"EdDSA"}},
			},
		},
		"iat": snapshot.CreatedAt.Unix(),
		"exp": snapshot.ExpiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["typ"] = requestObjectType
	token.Header["kid"] = v.kid

	signed, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("sign request object: %w", err)
	}

	if prev != snapshot.State {
		v.publish(ctx, snapshot, prev)
	}
	return signed, nil
}

// SubmitResponse verifies a direct_post response for a session. vpToken is the
// JSON object mapping query credential IDs to presentations.
func (v *Verifier) SubmitResponse(ctx context.Context, sessionID string, vpToken map[string][]string) error {
	v.mu.Lock()
	session, ok := v.sessions[sessionID]
	if !ok {
		v.mu.Unlock()
		return ErrSessionNotFound
	}
	if session.State != identity.StateRequestURIRetrieved && session.State != identity.StateRequestCreated {
		v.mu.Unlock()
		return fmt.Errorf("session %s is %s", sessionID, session.State)
	}
	snapshot := cloneSession(session)
	v.mu.Unlock()

	claims, verr := v.verifyResponse(snapshot, vpToken)

	v.mu.Lock()
	prev := session.State
	if verr != nil {
		session.State = identity.StateError
		session.ErrorMessage = verr.Error()
	} else {
		session.State = identity.StateResponseVerified
		session.Claims = claims
	}
	snapshot = cloneSession(session)
	v.mu.Unlock()

	if verr != nil {
		v.logger.WarnContext(ctx, "presentation rejected", slog.String("session_id", sessionID), slog.Any("error", verr))
	} else {
		v.logger.InfoContext(ctx, "presentation verified", slog.String("session_id", sessionID))
	}
	v.publish(ctx, snapshot, prev)

	return verr
}

func (v *Verifier) verifyResponse(session *identity.VerificationSession, vpToken map[string][]string) (map[string]any, error) {
	if v.now().After(session.ExpiresAt) {
		return nil, fmt.Errorf("session %s expired", session.ID)
	}

	disclosed := make(map[string]any)
	for _, item := range session.Query.Credentials {
		presentations := vpToken[item.ID]
		if len(presentations) == 0 {
			return nil, fmt.Errorf("no presentation for %q", item.ID)
		}
		claims, err := v.verifyPresentation(session, item, presentations[0])
		if err != nil {
			return nil, fmt.Errorf("presentation %q: %w", item.ID, err)
		}
		disclosed[item.ID] = claims
	}

	return disclosed, nil
}

func (v *Verifier) verifyPresentation(session *identity.VerificationSession, item identity.CredentialQueryItem, presentation string) (map[string]any, error) {
	credJWT, kbJWT, ok := strings.Cut(presentation, "~")
	if !ok || kbJWT == "" {
		return nil, fmt.Errorf("presentation has no key binding")
	}

	credClaims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(credJWT, credClaims, func(t *jwt.Token) (any, error) {
		iss, err := t.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		key, ok := v.trusted[iss]
		if !ok {
			return nil, fmt.Errorf("untrusted issuer %q", iss)
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()})); err != nil {
		return nil, fmt.Errorf("credential: %w", err)
	}

	cred, err := credentialFromClaims(credJWT, credClaims)
	if err != nil {
		return nil, err
	}
	if !matchesQuery(item, cred) {
		return nil, fmt.Errorf("credential %s does not satisfy the query", cred.VCT)
	}

	holderKey, err := holderKeyFromClaims(credClaims)
	if err != nil {
		return nil, err
	}
	kbClaims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(kbJWT, kbClaims, func(*jwt.Token) (any, error) {
		return holderKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(session.ClientID),
		jwt.WithIssuedAt(),
	); err != nil {
		return nil, fmt.Errorf("key binding: %w", err)
	}
	if nonce, _ := kbClaims["nonce"].(string); nonce != session.Nonce {
		return nil, fmt.Errorf("key binding nonce mismatch")
	}

	paths := make([][]string, len(item.Claims))
	for i, c := range item.Claims {
		paths[i] = c.Path
	}
	return disclose(cred.Claims, paths), nil
}

func (v *Verifier) publish(ctx context.Context, session *identity.VerificationSession, prev identity.SessionState) {
	if v.publisher == nil {
		return
	}
	ev := identity.SessionStateChangedEvent{Session: session, PreviousState: prev}
	if err := v.publisher.Publish(ctx, ev); err != nil {
		v.logger.ErrorContext(ctx, "failed to publish session state",
			slog.String("session_id", session.ID),
			slog.String("state", string(session.State)),
			slog.Any("error", err),
		)
	}
}

func (v *Verifier) endpoint(elem ...string) string {
	return v.baseURL.JoinPath(elem...).String()
}

func cloneSession(s *identity.VerificationSession) *identity.VerificationSession {
	c := *s
	c.Tags = maps.Clone(s.Tags)
	c.Claims = maps.Clone(s.Claims)
	return &c
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

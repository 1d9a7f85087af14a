// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package authz correlates verification session events from the identity
// subsystem with the A2A contexts waiting on them.
//
// A context becomes authorized the first time a session tagged with its ID
// reaches [identity.StateResponseVerified]. Authorized contexts are never
// evicted.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	a2a "github.com/go-a2a/a2a-stepup"
	"github.com/go-a2a/a2a-stepup/identity"
	"github.com/go-a2a/a2a-stepup/idset"
)

// instrumentationName names the tracer and meter of this package.
const instrumentationName = "github.com/go-a2a/a2a-stepup/authz"

// ErrAuthorizationTimeout is returned when a wait elapses before the context is
// authorized.
var ErrAuthorizationTimeout = errors.New("authorization timeout exceeded")

// SampleCredentialQuery is the credential query every authorization request
// carries.
func SampleCredentialQuery() identity.CredentialQuery {
	return identity.CredentialQuery{
		Credentials: []identity.CredentialQueryItem{{
			ID:     "SampleCredential",
			Format: identity.FormatSDJWTVC,
			Meta:   identity.CredentialMeta{VCTValues: []string{"SampleCredential"}},
			Claims: []identity.ClaimQuery{{Path: []string{"name"}}},
		}},
	}
}

// Option configures a [Correlator].
type Option func(*Correlator)

// WithAuthorizedContexts sets the store of authorized context IDs.
func WithAuthorizedContexts(s idset.Set) Option {
	return func(c *Correlator) { c.authorized = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Correlator) { c.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Correlator) { c.meter = mp.Meter(instrumentationName) }
}

// Correlator opens authorization requests for contexts and wakes up executions
// waiting on them.
type Correlator struct {
	verifier   identity.VerifierService
	authorized idset.Set
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter
	metrics    *metrics

	// mu guards the authorized check together with waits registration.
	mu    sync.Mutex
	waits map[string]map[chan struct{}]struct{}
}

// NewCorrelator returns a Correlator creating requests through verifier.
func NewCorrelator(verifier identity.VerifierService, opts ...Option) *Correlator {
	c := &Correlator{
		verifier: verifier,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
		waits:    make(map[string]map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.authorized == nil {
		c.authorized = idset.NewMemory()
	}
	c.metrics = newMetrics(c.meter)

	return c
}

// CreateAuthorizationRequest opens a verification session for contextID and
// returns the request to hand to the client.
func (c *Correlator) CreateAuthorizationRequest(ctx context.Context, contextID string) (*a2a.AuthorizationRequest, error) {
	verifierID, err := c.verifierID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.verifier.CreateAuthorizationRequest(ctx, identity.AuthorizationRequestOptions{
		VerifierID:   verifierID,
		ResponseMode: identity.ResponseModeDirectPost,
		Query:        SampleCredentialQuery(),
	})
	if err != nil {
		return nil, fmt.Errorf("create authorization request: %w", err)
	}
	if err := c.verifier.TagSession(ctx, res.Session.ID, identity.ContextIDTag, contextID); err != nil {
		return nil, fmt.Errorf("tag verification session: %w", err)
	}

	c.logger.InfoContext(ctx, "created authorization request",
		slog.String("context_id", contextID),
		slog.String("session_id", res.Session.ID),
	)

	return &a2a.AuthorizationRequest{
		ClientID:   res.ClientID,
		RequestURI: res.RequestURI,
	}, nil
}

func (c *Correlator) verifierID(ctx context.Context) (string, error) {
	verifiers, err := c.verifier.GetAllVerifiers(ctx)
	if err != nil {
		return "", fmt.Errorf("list verifiers: %w", err)
	}
	if len(verifiers) > 0 {
		return verifiers[0].ID, nil
	}

	rec, err := c.verifier.CreateVerifier(ctx)
	if err != nil {
		return "", fmt.Errorf("create verifier: %w", err)
	}
	return rec.ID, nil
}

// OnVerificationStateChanged authorizes the context a verified session is
// tagged with and releases every wait on it. Other states are ignored.
func (c *Correlator) OnVerificationStateChanged(ctx context.Context, ev identity.SessionStateChangedEvent) {
	if ev.Session == nil || ev.Session.State != identity.StateResponseVerified {
		return
	}
	contextID, ok := ev.Session.Tag(identity.ContextIDTag)
	if !ok || contextID == "" {
		c.logger.WarnContext(ctx, "verified session has no context tag", slog.String("session_id", ev.Session.ID))
		return
	}

	c.mu.Lock()
	c.authorized.Add(contextID)
	waits := c.waits[contextID]
	delete(c.waits, contextID)
	c.mu.Unlock()

	for ch := range waits {
		close(ch)
	}

	c.logger.InfoContext(ctx, "context authorized",
		slog.String("context_id", contextID),
		slog.String("session_id", ev.Session.ID),
		slog.Int("waiters", len(waits)),
	)
}

// IsAuthorized reports whether contextID has been authorized.
func (c *Correlator) IsAuthorized(contextID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authorized.Contains(contextID)
}

// WaitForContextAuthorization blocks until contextID is authorized. It returns
// [ErrAuthorizationTimeout] once timeout elapses, or the context error when ctx
// is done first.
func (c *Correlator) WaitForContextAuthorization(ctx context.Context, contextID string, timeout time.Duration) (err error) {
	ctx, span := c.tracer.Start(ctx, "a2a.authz.Wait", trace.WithAttributes(attribute.String("a2a.context_id", contextID)))
	start := time.Now()
	defer func() {
		outcome := "authorized"
		switch {
		case errors.Is(err, ErrAuthorizationTimeout):
			outcome = "timeout"
		case err != nil:
			outcome = "canceled"
		}
		c.metrics.waitDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	c.mu.Lock()
	if c.authorized.Contains(contextID) {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	if c.waits[contextID] == nil {
		c.waits[contextID] = make(map[chan struct{}]struct{})
	}
	c.waits[contextID][ch] = struct{}{}
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		err = ErrAuthorizationTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, pending := c.waits[contextID][ch]; !pending {
		// released concurrently with the timeout
		return nil
	}
	delete(c.waits[contextID], ch)
	if len(c.waits[contextID]) == 0 {
		delete(c.waits, contextID)
	}
	return err
}

// pending returns the number of waits registered for contextID.
func (c *Correlator) pending(contextID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waits[contextID])
}

// Run feeds session events from source into the correlator until ctx is done.
func (c *Correlator) Run(ctx context.Context, source identity.EventSource) error {
	events, err := source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("session event source closed")
			}
			c.OnVerificationStateChanged(ctx, ev)
		}
	}
}

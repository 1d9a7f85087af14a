// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/go-a2a/a2a-stepup/agent"
	"github.com/go-a2a/a2a-stepup/authz"
	"github.com/go-a2a/a2a-stepup/identity"
	"github.com/go-a2a/a2a-stepup/identity/oid4vp"
	"github.com/go-a2a/a2a-stepup/identity/redisbus"
	"github.com/go-a2a/a2a-stepup/internal/config"
	"github.com/go-a2a/a2a-stepup/internal/telemetry"
	"github.com/go-a2a/a2a-stepup/llm"
	"github.com/go-a2a/a2a-stepup/llm/openai"
	"github.com/go-a2a/a2a-stepup/server"
	"github.com/go-a2a/a2a-stepup/server/handler"
	"github.com/go-a2a/a2a-stepup/server/task"
)

// webSocketPath serves JSON-RPC over WebSocket next to the HTTP binding.
const webSocketPath = "/ws"

// eventBus carries verification session events from the verifier to the
// correlator.
type eventBus interface {
	identity.Publisher
	identity.EventSource
}

// app is the wired agent: the A2A handler, the verifier handler and the
// correlator loop feeding one from the other.
type app struct {
	agentHandler    http.Handler
	verifierHandler http.Handler
	correlator      *authz.Correlator
	bus             eventBus

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// newApp wires every component of cfg. completer replaces the OpenAI backend
// when non-nil.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, providers *telemetry.Providers, reg *prometheus.Registry, completer llm.Completer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.bus, err = newEventBus(ctx, cfg.Redis, logger); err != nil {
		return nil, err
	}
	if c, ok := a.bus.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	secret := cfg.Verifier.IssuerSecret
	if secret == "" {
		logger.WarnContext(ctx, "verifier.issuer_secret is not set, trusting the sample issuer key")
		secret = oid4vp.SampleIssuerSecret
	}
	issuerKey, err := oid4vp.KeyFromSecret(secret)
	if err != nil {
		return nil, fmt.Errorf("issuer key: %w", err)
	}
	verifier, err := oid4vp.NewVerifier(oid4vp.VerifierConfig{
		BaseURL:        cfg.Verifier.BaseURL,
		TrustedIssuers: map[string]ed25519.PublicKey{oid4vp.SampleIssuerID: issuerKey.Public().(ed25519.PublicKey)},
		Publisher:      a.bus,
		Logger:         logger.With(slog.String("component", "verifier")),
	})
	if err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}
	a.verifierHandler = verifier.Handler()

	store, err := newStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closerFunc(func() error { return store.Close(context.WithoutCancel(ctx)) }))

	if completer == nil {
		if completer, err = openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
			Logger:  logger,
		}); err != nil {
			return nil, err
		}
	}

	a.correlator = authz.NewCorrelator(verifier,
		authz.WithLogger(logger),
		authz.WithTracerProvider(providers.TracerProvider),
		authz.WithMeterProvider(providers.MeterProvider),
	)
	executor := agent.NewExecutor(completer, a.correlator,
		agent.WithAuthTimeout(cfg.Agent.AuthTimeout),
		agent.WithLogger(logger),
		agent.WithTracerProvider(providers.TracerProvider),
		agent.WithMeterProvider(providers.MeterProvider),
	)
	requests := handler.NewDefaultRequestHandler(executor, store,
		handler.WithHandlerLogger(logger),
		handler.WithHandlerTracerProvider(providers.TracerProvider),
	)
	a.agentHandler = handler.NewJSONRPCHandler(agent.SampleAgentCard(cfg.Agent.URL()), requests,
		handler.WithLogger(logger),
		handler.WithPrometheus(reg, reg),
		handler.WithWebSocket(webSocketPath),
	)

	return a, nil
}

// Close releases the store and the event bus.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newEventBus(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (eventBus, error) {
	if cfg.URL == "" {
		return identity.NewBroker(), nil
	}

	opts := []redisbus.Option{redisbus.WithLogger(logger)}
	if cfg.Channel != "" {
		opts = append(opts, redisbus.WithChannel(cfg.Channel))
	}
	bus, err := redisbus.Dial(ctx, cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return bus, nil
}

// taskStore is a [task.Store] owning its resources.
type taskStore interface {
	task.Store
	Close(ctx context.Context) error
}

func newStore(ctx context.Context, cfg config.StoreConfig) (taskStore, error) {
	switch cfg.Driver {
	case config.StoreMemory, "":
		return task.NewInMemoryStore(), nil

	case config.StoreSQLite:
		db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.DSN, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)

		store, err := task.NewDatabaseStore(task.DatabaseStoreConfig{DB: db, AutoMigrate: true})
		if err != nil {
			return nil, err
		}
		if err := store.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize task store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// run serves the agent and the verifier until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Registerer:     reg,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	a, err := newApp(ctx, cfg, logger, providers, reg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	agentSrv := server.New(fmt.Sprintf(":%d", cfg.Agent.Port), a.agentHandler,
		server.WithLogger(logger), server.WithName("agent"))
	verifierSrv := server.New(cfg.Verifier.Addr, a.verifierHandler,
		server.WithLogger(logger), server.WithName("verifier"))

	logger.InfoContext(ctx, "starting sample agent",
		slog.String("agent_card", fmt.Sprintf("http://localhost:%d/.well-known/agent-card.json", cfg.Agent.Port)),
		slog.String("verifier", cfg.Verifier.BaseURL),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.correlator.Run(ctx, a.bus)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error { return agentSrv.ListenAndServe(ctx) })
	g.Go(func() error { return verifierSrv.ListenAndServe(ctx) })

	return g.Wait()
}

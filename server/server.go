// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs HTTP handlers with cleartext HTTP/2 support and a graceful
// shutdown tied to a context.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Defaults for [Server].
const (
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
)

// Server serves a handler over HTTP/1.1 and h2c.
type Server struct {
	addr              string
	handler           http.Handler
	name              string
	logger            *slog.Logger
	shutdownTimeout   time.Duration
	readHeaderTimeout time.Duration
}

// New returns a Server for handler listening on addr.
func New(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		handler:           handler,
		name:              "http",
		logger:            slog.Default(),
		shutdownTimeout:   DefaultShutdownTimeout,
		readHeaderTimeout: DefaultReadHeaderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.handler, &http2.Server{}),
		ReadHeaderTimeout: s.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(l)
	}()
	s.logger.InfoContext(ctx, "server listening", slog.String("server", s.name), slog.String("addr", l.Addr().String()))

	select {
	case err := <-errc:
		return fmt.Errorf("%s server: %w", s.name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	s.logger.InfoContext(ctx, "shutting down server", slog.String("server", s.name))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown %s server: %w", s.name, err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", s.name, err)
	}
	return nil
}

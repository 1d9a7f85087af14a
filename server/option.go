// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"time"
)

// Option represents an option for configuring the [Server].
type Option func(*Server)

// WithLogger sets the [*slog.Logger] for the [Server].
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithName sets the name the [Server] logs under.
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithShutdownTimeout bounds how long in-flight requests may take to finish
// once the serving context is done.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithReadHeaderTimeout sets [http.Server.ReadHeaderTimeout].
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readHeaderTimeout = d
	}
}

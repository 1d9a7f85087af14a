// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2a-agent serves the sample agent over A2A JSON-RPC together with
// the OID4VP verifier the agent sends its users to.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-a2a/a2a-stepup/internal/config"
)

// version is set at build time.
var version = "dev"

func init() {
	// Enable the use of the random pool for UUID generation.
	uuid.EnableRandPool()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys binds command line flags to config keys.
var flagKeys = map[string]string{
	"port":          "agent.port",
	"public-url":    "agent.public_url",
	"auth-timeout":  "agent.auth_timeout",
	"verifier-addr": "verifier.addr",
	"verifier-url":  "verifier.base_url",
	"store":         "store.driver",
	"store-dsn":     "store.dsn",
	"redis-url":     "redis.url",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"otlp-endpoint": "telemetry.otlp_endpoint",
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:          "a2a-agent",
		Short:        "Serve the sample A2A agent and its OID4VP verifier",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			logger, err := cfg.Log.NewLogger(os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.ErrorContext(ctx, "agent stopped", slog.Any("error", err))
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML config file (default ./config.yaml if present)")
	flags.Int("port", 0, "A2A listen port")
	flags.String("public-url", "", "URL advertised in the agent card")
	flags.Duration("auth-timeout", 0, "how long a task waits for authorization")
	flags.String("verifier-addr", "", "verifier listen address")
	flags.String("verifier-url", "", "public base URL of the verifier")
	flags.String("store", "", "task store driver: memory or sqlite")
	flags.String("store-dsn", "", "sqlite database file")
	flags.String("redis-url", "", "Redis URL of the verification event bus")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	flags.String("otlp-endpoint", "", "OTLP/HTTP trace collector host:port")
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}

	return cmd
}

func loadConfig(v *viper.Viper, configFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

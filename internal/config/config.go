// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the settings of the agent and client binaries from
// defaults, an optional YAML file, a .env file, the environment and flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by [New].
const EnvPrefix = "A2A"

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds the settings of the agent server.
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Verifier  VerifierConfig  `mapstructure:"verifier"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Store     StoreConfig     `mapstructure:"store"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AgentConfig configures the A2A endpoint.
type AgentConfig struct {
	Port int `mapstructure:"port"`
	// PublicURL is advertised in the agent card. Defaults to http://localhost:{port}/.
	PublicURL   string        `mapstructure:"public_url"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
}

// URL returns the URL advertised in the agent card.
func (c AgentConfig) URL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return fmt.Sprintf("http://localhost:%d/", c.Port)
}

// VerifierConfig configures the reference OID4VP verifier.
type VerifierConfig struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`
	// IssuerSecret seeds the key of the trusted credential issuer.
	IssuerSecret string `mapstructure:"issuer_secret"`
}

// LLMConfig configures the completion backend.
type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects the task store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig configures the verification event bus. An empty URL keeps
// events in process.
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Channel string `mapstructure:"channel"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

var defaults = map[string]any{
	"agent.port":              10003,
	"agent.public_url":        "",
	"agent.auth_timeout":      10 * time.Second,
	"verifier.addr":           ":3001",
	"verifier.base_url":       "http://localhost:3001/oid4vp",
	"verifier.issuer_secret":  "",
	"llm.api_key":             "",
	"llm.base_url":            "https://api.openai.com/v1",
	"llm.model":               "gpt-3.5-turbo",
	"llm.timeout":             60 * time.Second,
	"store.driver":            StoreMemory,
	"store.dsn":               "",
	"redis.url":               "",
	"redis.channel":           "",
	"log.level":               "info",
	"log.format":              "text",
	"telemetry.otlp_endpoint": "",
	"telemetry.service_name":  "a2a-agent",
}

// unprefixed lists the conventional variables accepted next to the A2A_ ones.
var unprefixed = map[string]string{
	"llm.api_key": "OPENAI_API_KEY",
	"agent.port":  "SAMPLE_AGENT_PORT",
	"redis.url":   "REDIS_URL",
}

// New returns a viper instance carrying the defaults and bound to the
// environment. Flags are bound by the caller with BindPFlag.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range unprefixed {
		// the prefixed name wins when both are set
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	return v
}

// LoadDotEnv loads files into the process environment without overriding
// variables already set. A missing file is not an error; no files means .env.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configFile, or config.yaml from the working directory when it is
// empty, into v and decodes the result. Only the default file may be missing.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate reports settings the agent server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		errs = append(errs, errors.New("llm.api_key is required (set OPENAI_API_KEY)"))
	}
	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		errs = append(errs, fmt.Errorf("agent.port %d is out of range", c.Agent.Port))
	}
	if c.Agent.AuthTimeout <= 0 {
		errs = append(errs, errors.New("agent.auth_timeout must be positive"))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Verifier.BaseURL == "" {
		errs = append(errs, errors.New("verifier.base_url is required"))
	}
	return errors.Join(errs...)
}

// NewLogger builds a logger writing to w in the configured format and level.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log.format %q", c.Format)
	}
}

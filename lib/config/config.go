// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the deployment type.
type Environment string

const (
	// Development is for rehearsal and local development: simulated
	// transport, verbose logging.
	Development Environment = "development"
	// Production is for live operations against a real SFU.
	Production Environment = "production"
)

// Backend selects the transport implementation.
type Backend string

const (
	// Simulated is the in-memory transport with artificial latency.
	Simulated Backend = "simulated"
	// Live is the WebRTC/SFU transport.
	Live Backend = "live"
)

// Config is the master configuration for commsnet binaries.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Transport selects and tunes the audio backend.
	Transport TransportConfig `yaml:"transport"`

	// Session tunes the net session state machine.
	Session SessionConfig `yaml:"session"`

	// Directory locates the net directory file.
	Directory DirectoryConfig `yaml:"directory"`

	// Audit configures the audit sink.
	Audit AuditConfig `yaml:"audit"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can be overridden per environment.
type Overrides struct {
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Session   *SessionConfig   `yaml:"session,omitempty"`
	Audit     *AuditConfig     `yaml:"audit,omitempty"`
}

// TransportConfig selects and tunes the audio backend.
type TransportConfig struct {
	// Backend is "simulated" or "live".
	Backend Backend `yaml:"backend"`

	// SFUURL is the base URL of the SFU signaling endpoint. Required
	// for the live backend, ignored by the simulated one.
	SFUURL string `yaml:"sfu_url"`

	// TokenURL is the base URL of the token-issuing service. Required
	// for the live backend.
	TokenURL string `yaml:"token_url"`

	// ConnectLatency is the artificial connect delay of the simulated
	// backend. Zero means the simulated default (250ms).
	ConnectLatency time.Duration `yaml:"connect_latency"`

	// SpeakingInterval is how often the simulated backend toggles
	// synthetic speaking activity. Zero disables it.
	SpeakingInterval time.Duration `yaml:"speaking_interval"`
}

// SessionConfig tunes the net session state machine.
type SessionConfig struct {
	// ConnectTimeout bounds a single connect attempt. Zero means the
	// engine default of 16 seconds.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DirectoryConfig locates the net directory file.
type DirectoryConfig struct {
	// NetsFile is the path to the JSONC net directory. Operators edit
	// this file by hand, so comments and trailing commas are allowed.
	NetsFile string `yaml:"nets_file"`
}

// AuditConfig configures the audit sink.
type AuditConfig struct {
	// Path is the audit stream file. Empty disables the file sink;
	// audit events still go to the structured log.
	Path string `yaml:"path"`

	// Buffer is the in-memory event buffer size. Events beyond this
	// are dropped (counted) rather than blocking engine transitions.
	// Zero means the default of 256.
	Buffer int `yaml:"buffer"`
}

// Default returns the default configuration: simulated transport,
// development environment. These exist to give every field a sensible
// zero value — the config file is still the source of truth.
func Default() *Config {
	return &Config{
		Environment: Development,
		Transport: TransportConfig{
			Backend: Simulated,
		},
		Session: SessionConfig{},
		Audit: AuditConfig{
			Buffer: 256,
		},
	}
}

// Load loads configuration from the COMMSNET_CONFIG environment
// variable. Fails if the variable is not set — there is no fallback.
func Load() (*Config, error) {
	path := os.Getenv("COMMSNET_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("COMMSNET_CONFIG environment variable not set; " +
			"set it to the path of your commsnet.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, applies the
// matching environment override section, and returns the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching the
// configured environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Transport != nil {
		if overrides.Transport.Backend != "" {
			c.Transport.Backend = overrides.Transport.Backend
		}
		if overrides.Transport.SFUURL != "" {
			c.Transport.SFUURL = overrides.Transport.SFUURL
		}
		if overrides.Transport.TokenURL != "" {
			c.Transport.TokenURL = overrides.Transport.TokenURL
		}
		if overrides.Transport.ConnectLatency != 0 {
			c.Transport.ConnectLatency = overrides.Transport.ConnectLatency
		}
		if overrides.Transport.SpeakingInterval != 0 {
			c.Transport.SpeakingInterval = overrides.Transport.SpeakingInterval
		}
	}
	if overrides.Session != nil {
		if overrides.Session.ConnectTimeout != 0 {
			c.Session.ConnectTimeout = overrides.Session.ConnectTimeout
		}
	}
	if overrides.Audit != nil {
		if overrides.Audit.Path != "" {
			c.Audit.Path = overrides.Audit.Path
		}
		if overrides.Audit.Buffer != 0 {
			c.Audit.Buffer = overrides.Audit.Buffer
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	switch c.Transport.Backend {
	case Simulated:
	case Live:
		if c.Transport.SFUURL == "" {
			errs = append(errs, fmt.Errorf("transport.sfu_url is required for the live backend"))
		}
		if c.Transport.TokenURL == "" {
			errs = append(errs, fmt.Errorf("transport.token_url is required for the live backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid transport.backend: %q", c.Transport.Backend))
	}

	if c.Session.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.connect_timeout must not be negative"))
	}
	if c.Audit.Buffer < 0 {
		errs = append(errs, fmt.Errorf("audit.buffer must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

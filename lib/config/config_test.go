// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commsnet.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, "environment: development\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Transport.Backend != Simulated {
		t.Errorf("default backend = %q, want simulated", cfg.Transport.Backend)
	}
	if cfg.Audit.Buffer != 256 {
		t.Errorf("default audit buffer = %d, want 256", cfg.Audit.Buffer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate on defaults: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
transport:
  backend: simulated
production:
  transport:
    backend: live
    sfu_url: https://sfu.vanguard.example
    token_url: https://tokens.vanguard.example
  session:
    connect_timeout: 8s
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Transport.Backend != Live {
		t.Errorf("backend = %q, want live (production override)", cfg.Transport.Backend)
	}
	if cfg.Session.ConnectTimeout != 8*time.Second {
		t.Errorf("connect_timeout = %v, want 8s", cfg.Session.ConnectTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateLiveRequiresURLs(t *testing.T) {
	cfg := Default()
	cfg.Transport.Backend = Live
	if err := cfg.Validate(); err == nil {
		t.Fatal("live backend without URLs passed validation")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Transport.Backend = "quantum"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend passed validation")
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("COMMSNET_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without COMMSNET_CONFIG succeeded")
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Sandbox.BinaryPath != "pbox-sandbox" {
		t.Errorf("expected binary_path=pbox-sandbox, got %s", cfg.Sandbox.BinaryPath)
	}

	if cfg.Admin.SocketPath != "/run/pbox/admin.sock" {
		t.Errorf("expected socket_path=/run/pbox/admin.sock, got %s", cfg.Admin.SocketPath)
	}

	if !cfg.Admin.Enabled {
		t.Error("expected admin.enabled=true for development")
	}
}

func TestLoad_RequiresPboxConfig(t *testing.T) {
	origConfig := os.Getenv("PBOX_CONFIG")
	defer os.Setenv("PBOX_CONFIG", origConfig)

	os.Unsetenv("PBOX_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when PBOX_CONFIG not set, got nil")
	}

	expectedMsg := "PBOX_CONFIG environment variable not set"
	if err.Error()[:len(expectedMsg)] != expectedMsg {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithPboxConfig(t *testing.T) {
	origConfig := os.Getenv("PBOX_CONFIG")
	defer os.Setenv("PBOX_CONFIG", origConfig)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pbox-hostd.yaml")

	configContent := `
environment: staging
sandbox:
  binary_path: /test/pbox-sandbox
admin:
  socket_path: /test/admin.sock
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	os.Setenv("PBOX_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Sandbox.BinaryPath != "/test/pbox-sandbox" {
		t.Errorf("expected binary_path=/test/pbox-sandbox, got %s", cfg.Sandbox.BinaryPath)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pbox-hostd.yaml")

	configContent := `
environment: staging

sandbox:
  binary_path: /custom/pbox-sandbox
  identity_arena_size: 33554432
  max_callbacks: 128

admin:
  socket_path: /custom/admin.sock
  enabled: false

logging:
  level: debug
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Sandbox.BinaryPath != "/custom/pbox-sandbox" {
		t.Errorf("expected binary_path=/custom/pbox-sandbox, got %s", cfg.Sandbox.BinaryPath)
	}

	if cfg.Sandbox.IdentityArenaSize != 33554432 {
		t.Errorf("expected identity_arena_size=33554432, got %d", cfg.Sandbox.IdentityArenaSize)
	}

	if cfg.Sandbox.MaxCallbacks != 128 {
		t.Errorf("expected max_callbacks=128, got %d", cfg.Sandbox.MaxCallbacks)
	}

	if cfg.Admin.Enabled {
		t.Error("expected admin.enabled=false")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging.level=debug, got %s", cfg.Logging.Level)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pbox-hostd.yaml")

	configContent := `
environment: production

sandbox:
  binary_path: /default/pbox-sandbox
  missing_binary: warn

admin:
  enabled: true

production:
  sandbox:
    missing_binary: error
  admin:
    enabled: false
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Sandbox.MissingBinary != "error" {
		t.Errorf("expected missing_binary=error from production override, got %s", cfg.Sandbox.MissingBinary)
	}

	if cfg.Admin.Enabled {
		t.Error("expected admin.enabled=false from production override")
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Verify that environment variables do NOT override config file values.
	// The config file is the single source of truth for deterministic configuration.

	origSocket := os.Getenv("PBOX_ADMIN_SOCKET")
	origEnv := os.Getenv("PBOX_ENVIRONMENT")
	defer func() {
		os.Setenv("PBOX_ADMIN_SOCKET", origSocket)
		os.Setenv("PBOX_ENVIRONMENT", origEnv)
	}()

	os.Setenv("PBOX_ADMIN_SOCKET", "/env/admin.sock")
	os.Setenv("PBOX_ENVIRONMENT", "staging")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pbox-hostd.yaml")

	configContent := `
environment: development
admin:
  socket_path: /file/admin.sock
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}

	if cfg.Admin.SocketPath != "/file/admin.sock" {
		t.Errorf("expected socket_path=/file/admin.sock from file, got %s (env vars should not override)", cfg.Admin.SocketPath)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/pbox",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/pbox",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty binary path",
			modify: func(c *Config) {
				c.Sandbox.BinaryPath = ""
			},
			wantErr: true,
		},
		{
			name: "zero arena size",
			modify: func(c *Config) {
				c.Sandbox.IdentityArenaSize = 0
			},
			wantErr: true,
		},
		{
			name: "invalid missing_binary value",
			modify: func(c *Config) {
				c.Sandbox.MissingBinary = "invalid"
			},
			wantErr: true,
		},
		{
			name: "admin enabled without socket path",
			modify: func(c *Config) {
				c.Admin.SocketPath = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveBinaryPath(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.BinaryPath = "pbox-sandbox"

	t.Run("found", func(t *testing.T) {
		resolved, err := cfg.ResolveBinaryPath(func(name string) (string, error) {
			return "/usr/local/bin/" + name, nil
		})
		if err != nil {
			t.Fatalf("ResolveBinaryPath failed: %v", err)
		}
		if resolved != "/usr/local/bin/pbox-sandbox" {
			t.Errorf("got %s", resolved)
		}
	})

	t.Run("missing, warn", func(t *testing.T) {
		cfg.Sandbox.MissingBinary = "warn"
		resolved, err := cfg.ResolveBinaryPath(func(name string) (string, error) {
			return "", fmt.Errorf("not found")
		})
		if err != nil {
			t.Fatalf("expected no error in warn mode, got %v", err)
		}
		if resolved != "pbox-sandbox" {
			t.Errorf("got %s", resolved)
		}
	})

	t.Run("missing, error", func(t *testing.T) {
		cfg.Sandbox.MissingBinary = "error"
		_, err := cfg.ResolveBinaryPath(func(name string) (string, error) {
			return "", fmt.Errorf("not found")
		})
		if err == nil {
			t.Fatal("expected error in error mode")
		}
	})
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for pbox-hostd.
//
// Configuration is loaded from a single file specified by:
//   - PBOX_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for pbox-hostd.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Sandbox configures the sandbox child process that pbox-hostd launches.
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Admin configures the debug/introspection RPC surface.
	Admin AdminConfig `yaml:"admin"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Sandbox *SandboxConfig `yaml:"sandbox,omitempty"`
	Admin   *AdminConfig   `yaml:"admin,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// SandboxConfig configures the sandbox child process.
type SandboxConfig struct {
	// BinaryPath is the path to the pbox-sandbox executable.
	// Default: pbox-sandbox (resolved via PATH).
	BinaryPath string `yaml:"binary_path"`

	// LibraryPath names a shared object for the sandbox, if any. It is
	// loaded and variable-expanded with the rest of the config, but
	// pbox-hostd does not pass it to the sandbox: nothing is preloaded,
	// and the host dlsym's symbols one at a time as needed.
	LibraryPath string `yaml:"library_path,omitempty"`

	// IdentityArenaSize is the size in bytes of the identity-mapped memory
	// arena each Caller allocates lazily. Must be a multiple of the page size.
	// Default: 16MiB.
	IdentityArenaSize int64 `yaml:"identity_arena_size"`

	// MaxCallbacks is validated to be positive but is not passed on to
	// the sandbox: the number of host callbacks a single sandbox may
	// register is fixed at channel.MaxClosures (64). Default: 64.
	MaxCallbacks int `yaml:"max_callbacks"`

	// MissingBinary controls behavior when BinaryPath cannot be resolved.
	// Values: "error" (fail startup), "warn" (continue with the configured
	// path unresolved, without logging; sandboxes fail to create on
	// demand instead).
	// Default: warn (development), error (production)
	MissingBinary string `yaml:"missing_binary"`
}

// AdminConfig configures the debug/introspection CBOR RPC surface.
type AdminConfig struct {
	// Enabled turns on the admin listener.
	// Default: true (development), false (production)
	Enabled bool `yaml:"enabled"`

	// SocketPath is the Unix socket the admin surface listens on.
	// Default: /run/pbox/admin.sock
	SocketPath string `yaml:"socket_path"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: info
	Level string `yaml:"level"`

	// Format is one of "text" or "json".
	// Default: text (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Sandbox: SandboxConfig{
			BinaryPath:        "pbox-sandbox",
			IdentityArenaSize: 16 << 20,
			MaxCallbacks:      64,
			MissingBinary:     "warn",
		},
		Admin: AdminConfig{
			Enabled:    true,
			SocketPath: "/run/pbox/admin.sock",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the PBOX_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if PBOX_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("PBOX_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PBOX_CONFIG environment variable not set; " +
			"set it to the path of your pbox-hostd.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: stricter behavior.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Sandbox: &SandboxConfig{
					MissingBinary: "error",
				},
				Admin: &AdminConfig{
					Enabled: false,
				},
				Logging: &LoggingConfig{
					Format: "json",
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Sandbox != nil {
		if overrides.Sandbox.BinaryPath != "" {
			c.Sandbox.BinaryPath = overrides.Sandbox.BinaryPath
		}
		if overrides.Sandbox.LibraryPath != "" {
			c.Sandbox.LibraryPath = overrides.Sandbox.LibraryPath
		}
		if overrides.Sandbox.IdentityArenaSize != 0 {
			c.Sandbox.IdentityArenaSize = overrides.Sandbox.IdentityArenaSize
		}
		if overrides.Sandbox.MaxCallbacks != 0 {
			c.Sandbox.MaxCallbacks = overrides.Sandbox.MaxCallbacks
		}
		if overrides.Sandbox.MissingBinary != "" {
			c.Sandbox.MissingBinary = overrides.Sandbox.MissingBinary
		}
	}

	if overrides.Admin != nil {
		// Enabled is a bool, so we always apply it from overrides.
		c.Admin.Enabled = overrides.Admin.Enabled
		if overrides.Admin.SocketPath != "" {
			c.Admin.SocketPath = overrides.Admin.SocketPath
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Sandbox.BinaryPath = expandVars(c.Sandbox.BinaryPath, vars)
	c.Sandbox.LibraryPath = expandVars(c.Sandbox.LibraryPath, vars)
	c.Admin.SocketPath = expandVars(c.Admin.SocketPath, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Sandbox.BinaryPath == "" {
		errs = append(errs, fmt.Errorf("sandbox.binary_path is required"))
	}

	if c.Sandbox.IdentityArenaSize <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.identity_arena_size must be positive"))
	}

	if c.Sandbox.MaxCallbacks <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_callbacks must be positive"))
	}

	missingBinaryValues := []string{"warn", "error"}
	if !contains(missingBinaryValues, c.Sandbox.MissingBinary) {
		errs = append(errs, fmt.Errorf("sandbox.missing_binary must be one of: %v", missingBinaryValues))
	}

	if c.Admin.Enabled && c.Admin.SocketPath == "" {
		errs = append(errs, fmt.Errorf("admin.socket_path is required when admin.enabled is true"))
	}

	logLevels := []string{"debug", "info", "warn", "error"}
	if !contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}

	logFormats := []string{"text", "json"}
	if !contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// ResolveBinaryPath resolves the sandbox binary path, honoring
// missing_binary semantics: "error" returns an error when the binary
// cannot be found; "warn" returns the configured path unchanged so the
// caller fails lazily at sandbox-creation time instead of at startup.
func (c *Config) ResolveBinaryPath(lookPath func(string) (string, error)) (string, error) {
	resolved, err := lookPath(c.Sandbox.BinaryPath)
	if err != nil {
		if c.Sandbox.MissingBinary == "error" {
			return "", fmt.Errorf("resolving sandbox binary %q: %w", c.Sandbox.BinaryPath, err)
		}
		return c.Sandbox.BinaryPath, nil
	}
	return resolved, nil
}

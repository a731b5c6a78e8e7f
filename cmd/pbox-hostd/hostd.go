// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/pbox"
	"github.com/bureau-foundation/pbox/admin"
	"github.com/bureau-foundation/pbox/lib/config"
)

// run loads configuration, creates the sandbox it describes, and serves
// the admin surface until interrupted.
func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	binaryPath, err := cfg.ResolveBinaryPath(exec.LookPath)
	if err != nil {
		return err
	}

	logger.Info("starting sandbox", "binary", binaryPath, "environment", cfg.Environment)

	sandbox, err := pbox.Create(binaryPath,
		pbox.WithLogger(logger),
		pbox.WithIdentityArenaSize(cfg.Sandbox.IdentityArenaSize),
	)
	if err != nil {
		return fmt.Errorf("creating sandbox: %w", err)
	}
	defer sandbox.Destroy()

	logger.Info("sandbox running", "pid", sandbox.PID())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !cfg.Admin.Enabled {
		<-ctx.Done()
		return nil
	}

	server := admin.NewServer(cfg.Admin.SocketPath, func() *pbox.Sandbox { return sandbox }, logger)
	return server.Serve(ctx)
}

// loadConfig loads from configPath if set, else from PBOX_CONFIG.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// newLogger builds the structured logger cfg describes: text handler
// for local development, JSON for anything meant to be scraped.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"log/slog"

	"github.com/bureau-foundation/pbox/hostlib"
)

// Option configures a Sandbox at Create time. pbox is a library, not a
// service, so it takes functional options rather than a config struct
// the way cmd/pbox-hostd's YAML-loaded settings do -- see SPEC_FULL.md's
// Design Notes.
type Option func(*hostlib.Config)

// WithLogger sets the *slog.Logger the sandbox reports lifecycle events
// to. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *hostlib.Config) { c.Logger = logger }
}

// WithIdentityArenaSize sets the size, in bytes, of each Caller's
// lazily allocated identity-mapped memory arena. Defaults to 16 MiB.
func WithIdentityArenaSize(size int64) Option {
	return func(c *hostlib.Config) { c.IdentityArenaSize = size }
}

// WithLockedIdentityMemory mlocks every identity-mapped region and
// excludes it from core dumps, the same protection lib/secret gives a
// credential buffer. Off by default, since mlock over the default
// 16 MiB arena exceeds the RLIMIT_MEMLOCK most unprivileged processes
// run under -- pair this with WithIdentityArenaSize to a size that
// fits the memlock limit the sandbox will actually run under.
func WithLockedIdentityMemory() Option {
	return func(c *hostlib.Config) { c.LockIdentityMemory = true }
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for pbox-hostd.
//
// Configuration is loaded from a single file specified by either the
// PBOX_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. This ensures deterministic, auditable
// configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// the admin socket is disabled by default and a missing sandbox
// binary is a hard error rather than a warning.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${PBOX_ROOT}, and ${VAR:-default} patterns are expanded.
// No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Sandbox, Admin, Logging
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// The library packages ([channel], hostlib, pbox) are not configured
// through this package -- they take functional options at the call
// site, since they are meant to be embedded in an arbitrary host
// process, not just pbox-hostd. This package exists only for the
// demo daemon binary.
package config

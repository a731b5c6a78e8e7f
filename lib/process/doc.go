// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the pbox
// command binaries (pbox-hostd, pbox-bench). It
// centralizes the one legitimate raw I/O pattern that exists before or
// after the structured logger: reporting a fatal error to stderr and
// exiting with a nonzero code when the logger may not yet be
// initialized (an error in flag or config parsing, say).
package process

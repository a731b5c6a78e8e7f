// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostlib implements the host side of the cross-domain call
// engine: forking and supervising the sandbox process, negotiating a
// control channel and per-Caller worker channels over it, translating
// host file descriptors into sandbox ones, dispatching re-entrant
// callbacks, and managing identity-mapped shared memory arenas.
//
// The top-level package pbox wraps this package's Sandbox and Caller
// types in its own Sandbox and Caller types, under the names the rest of SPEC_FULL.md's operations
// are described against; hostlib itself has no notion of "the public
// API" and is free to expose whatever shape is convenient for pbox to
// wrap.
package hostlib

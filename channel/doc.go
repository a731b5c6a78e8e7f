// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel defines the fixed-layout shared-memory struct that a
// host process and a sandboxed child process use to exchange a single
// dynamically-typed call, one at a time, without a syscall on the hot
// path.
//
// Each [Channel] is backed by a memfd-created region mapped with
// [golang.org/x/sys/unix.Mmap] into both processes. The struct's field
// offsets are part of the wire contract between host and sandbox: both
// sides map the same memfd and must agree on layout, so every field is
// a fixed-width integer type, never a Go pointer, slice header, or
// string.
//
// Ownership of the channel alternates between host and sandbox by way
// of the atomic [State] word: whichever side observes the state it is
// waiting for owns the channel's fields until it hands ownership back
// by writing the next state. Package wait implements the blocking
// primitive that watches this word; package channel only defines the
// data the two sides exchange while they hold it.
//
// A Channel is deliberately not safe for concurrent use by multiple
// goroutines on the host side. It models one sandbox worker thread and
// its single caller; hostlib gives each caller its own Channel.
package channel

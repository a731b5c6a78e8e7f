// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package seccomp installs the two-stage seccomp-bpf syscall policy the
// sandbox process runs under.
//
// The base filter is installed once, immediately after the sandbox
// binary starts, and allow-lists exactly the syscalls the sandbox
// runtime itself needs (memory management, futex, signal handling,
// process exit, a small set of information queries) plus thread
// creation, since sandboxed native code is free to call pthread_create.
// Every other syscall returns ENOSYS. A worker filter is installed
// separately, once per spawned worker thread, that additionally blocks
// clone/clone3 -- worker threads run untrusted native code and must not
// be able to spawn further threads outside the runtime's control, while
// threads that never install the worker filter (the bootstrap thread
// among them) still can.
// Seccomp filters stack: the worker filter's ALLOW defers to the base
// filter's decision for every syscall it doesn't explicitly block.
//
// Filters are hand-assembled []unix.SockFilter, mirroring the original
// implementation's BPF_STMT/BPF_JUMP macro-built arrays instruction for
// instruction -- see DESIGN.md for why this is preferred over a
// higher-level seccomp DSL.
package seccomp

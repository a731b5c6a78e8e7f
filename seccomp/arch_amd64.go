// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build amd64

package seccomp

import "golang.org/x/sys/unix"

// archSpecificSyscalls returns syscalls needed only on this
// architecture. arch_prctl is how glibc/musl set up thread-local
// storage on x86-64 and has no equivalent on arm64, where TLS setup
// goes through set_tid_address/mmap instead.
func archSpecificSyscalls() []uintptr {
	return []uintptr{unix.SYS_ARCH_PRCTL}
}

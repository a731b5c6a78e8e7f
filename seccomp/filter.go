// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package seccomp

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

func archName() string { return runtime.GOARCH }

// AUDIT_ARCH_* values from linux/audit.h. golang.org/x/sys/unix does
// not export these (they belong to the audit subsystem headers, not
// the syscall table), so they're reproduced here from the same source
// the original C implementation includes directly.
const (
	auditArchX86_64  = 0xc000003e
	auditArchI386    = 0x40000003
	auditArchAARCH64 = 0xc00000b7
	auditArchARM     = 0x40000028
)

// seccompDataOffsetNR and seccompDataOffsetArch are byte offsets into
// struct seccomp_data (linux/seccomp.h): { int nr; __u32 arch; __u64
// instruction_pointer; __u64 args[6]; }. No syscall argument
// inspection is needed for this policy, so args' offset is unused.
const (
	seccompDataOffsetNR   = 0
	seccompDataOffsetArch = 4
)

func loadSyscallNR() unix.SockFilter {
	return unix.SockFilter{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: seccompDataOffsetNR}
}

func loadArch() unix.SockFilter {
	return unix.SockFilter{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: seccompDataOffsetArch}
}

func jumpEq(k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, Jt: jt, Jf: jf, K: k}
}

func ret(action uint32) unix.SockFilter {
	return unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, K: action}
}

func errnoAction(errno uintptr) uint32 {
	return unix.SECCOMP_RET_ERRNO | (uint32(errno) & unix.SECCOMP_RET_DATA)
}

// allow appends the two instructions that allow one syscall number:
// jump over the RET_ALLOW if the syscall doesn't match, fall through
// to RET_ALLOW if it does.
func allow(filter []unix.SockFilter, nr uintptr) []unix.SockFilter {
	return append(filter,
		jumpEq(uint32(nr), 0, 1),
		ret(unix.SECCOMP_RET_ALLOW),
	)
}

// block appends the two instructions that reject one syscall number
// with the given errno, falling through (ALLOW is not implied) when
// the syscall doesn't match.
func block(filter []unix.SockFilter, nr uintptr, errno uintptr) []unix.SockFilter {
	return append(filter,
		jumpEq(uint32(nr), 0, 1),
		ret(errnoAction(errno)),
	)
}

// currentAuditArch returns the AUDIT_ARCH_* value for GOARCH, or an
// error if this package doesn't know the value for the running
// architecture. Build performs this check once at filter-build time so
// InstallBase fails loudly on an unsupported architecture rather than
// installing a filter that would KILL every syscall.
func currentAuditArch() (uint32, error) {
	switch archName() {
	case "amd64":
		return auditArchX86_64, nil
	case "386":
		return auditArchI386, nil
	case "arm64":
		return auditArchAARCH64, nil
	case "arm":
		return auditArchARM, nil
	default:
		return 0, fmt.Errorf("seccomp: unsupported architecture %q", archName())
	}
}

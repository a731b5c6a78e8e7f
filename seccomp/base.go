// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package seccomp

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// baseAllowedSyscalls is the fixed allow-list installed once by
// [InstallBase]. Grouped exactly as the original implementation groups
// them, for ease of diffing against pbox_seccomp.c.
func baseAllowedSyscalls() []uintptr {
	syscalls := []uintptr{
		// Memory management.
		unix.SYS_BRK,
		unix.SYS_MMAP,
		unix.SYS_MUNMAP,
		unix.SYS_MPROTECT,
		unix.SYS_MREMAP,
		unix.SYS_MADVISE,

		// File descriptors (before clone, to avoid BPF ordering issues).
		unix.SYS_CLOSE,
		unix.SYS_RECVMSG,

		// Threading (futex).
		unix.SYS_FUTEX,
		unix.SYS_SET_TID_ADDRESS,
		unix.SYS_SET_ROBUST_LIST,
		unix.SYS_GET_ROBUST_LIST,

		// Signals.
		unix.SYS_RT_SIGACTION,
		unix.SYS_RT_SIGPROCMASK,
		unix.SYS_RT_SIGRETURN,
		unix.SYS_SIGALTSTACK,

		// Process exit.
		unix.SYS_EXIT,
		unix.SYS_EXIT_GROUP,

		// Architecture/TLS.
		unix.SYS_PRCTL,

		// Safe information queries.
		unix.SYS_GETPID,
		unix.SYS_GETTID,
		unix.SYS_GETUID,
		unix.SYS_GETEUID,
		unix.SYS_GETGID,
		unix.SYS_GETEGID,

		// Misc commonly needed.
		unix.SYS_GETRANDOM,
		unix.SYS_CLOCK_GETTIME,
		unix.SYS_CLOCK_GETRES,
		unix.SYS_GETTIMEOFDAY,
		unix.SYS_NANOSLEEP,

		// Scheduler (for threads).
		unix.SYS_SCHED_YIELD,
		unix.SYS_SCHED_GETAFFINITY,

		// Thread creation (pthread_create / runtime.LockOSThread).
		unix.SYS_CLONE,
		unix.SYS_CLONE3,

		// Newer glibc/runtime primitives the original filter also
		// allows: rseq (per-thread restartable sequences, registered
		// by the Go runtime and glibc on startup), tgkill (used by
		// the Go runtime and by libc's abort path), membarrier
		// (used by some allocators for cheap cross-thread fences),
		// and clock_nanosleep (timer_settime-style sleeps some libc
		// builds prefer over plain nanosleep).
		unix.SYS_RSEQ,
		unix.SYS_TGKILL,
		unix.SYS_MEMBARRIER,
		unix.SYS_CLOCK_NANOSLEEP,
	}
	return append(syscalls, archSpecificSyscalls()...)
}

// Build constructs the base seccomp-bpf program: an architecture check
// that kills the process outright on a mismatched ABI (a 32-bit
// syscall entry on a 64-bit process, the classic seccomp bypass),
// followed by the allow-list, followed by a default ENOSYS for
// anything else.
func Build() (unix.SockFprog, error) {
	arch, err := currentAuditArch()
	if err != nil {
		return unix.SockFprog{}, err
	}

	filter := []unix.SockFilter{
		loadArch(),
		jumpEq(arch, 1, 0),
		ret(unix.SECCOMP_RET_KILL_PROCESS),
		loadSyscallNR(),
	}

	for _, nr := range baseAllowedSyscalls() {
		filter = allow(filter, nr)
	}

	filter = append(filter, ret(errnoAction(uintptr(unix.ENOSYS))))

	return toFprog(filter)
}

func toFprog(filter []unix.SockFilter) (unix.SockFprog, error) {
	if len(filter) > 0xffff {
		return unix.SockFprog{}, fmt.Errorf("seccomp: filter has %d instructions, exceeds sock_fprog's uint16 length", len(filter))
	}
	return unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}, nil
}

// InstallBase builds and installs the base filter in the calling
// thread (seccomp filters are per-thread in the kernel, inherited by
// children created afterward). It sets PR_SET_NO_NEW_PRIVS first, which
// is required before SECCOMP_MODE_FILTER can be installed by an
// unprivileged process.
func InstallBase() error {
	prog, err := Build()
	if err != nil {
		return err
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("seccomp: PR_SET_NO_NEW_PRIVS: %w", err)
	}

	if err := installFilter(&prog); err != nil {
		return fmt.Errorf("seccomp: installing base filter: %w", err)
	}

	return nil
}

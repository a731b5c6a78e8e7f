// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package seccomp

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// BuildWorker constructs the worker filter: it blocks clone and
// clone3 with ENOSYS and allows everything else, deferring to
// whatever the base filter installed by [InstallBase] decides.
// Stacking filters this way lets the process's bootstrap thread
// retain the ability to create the worker threads themselves (it
// never installs this filter) while every worker thread, once
// running untrusted native code, cannot spawn further threads outside
// the runtime's control.
func BuildWorker() (unix.SockFprog, error) {
	filter := []unix.SockFilter{
		loadSyscallNR(),
	}
	filter = block(filter, unix.SYS_CLONE, uintptr(unix.ENOSYS))
	filter = block(filter, unix.SYS_CLONE3, uintptr(unix.ENOSYS))
	filter = append(filter, ret(unix.SECCOMP_RET_ALLOW))

	return toFprog(filter)
}

// InstallWorker installs the worker filter in the calling thread. It
// does not set PR_SET_NO_NEW_PRIVS again; InstallBase already set it
// for the whole process (the flag is inherited across clone and is
// sticky -- it cannot be unset).
func InstallWorker() error {
	prog, err := BuildWorker()
	if err != nil {
		return err
	}
	if err := installFilter(&prog); err != nil {
		return fmt.Errorf("seccomp: installing worker filter: %w", err)
	}
	return nil
}

func installFilter(prog *unix.SockFprog) error {
	return unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(prog)), 0, 0)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// pbox-sandbox is the sandboxed-side executable spawned by hostlib.Create.
// It maps the control channel passed at fd 3, installs the base seccomp
// filter, and runs the control dispatch loop, spawning one worker
// goroutine (pinned to its own OS thread and further seccomp-restricted)
// per RequestSpawnWorker it receives on the control channel.
//
// Usage:
//
//	pbox-sandbox <control_shm_fd> <sock_fd>
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/seccomp"
)

// sockFD is the fd-passing socket shared by every worker in this
// process, matching the original's process-wide g_sock_fd.
var sockFD int

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("PBOX_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if err := run(logger); err != nil {
		logger.Error("pbox-sandbox exiting", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if len(os.Args) != 3 {
		return fmt.Errorf("usage: %s <control_shm_fd> <sock_fd>", os.Args[0])
	}

	shmFD, err := strconv.Atoi(os.Args[1])
	if err != nil {
		return fmt.Errorf("parsing control_shm_fd: %w", err)
	}
	sockFD, err = strconv.Atoi(os.Args[2])
	if err != nil {
		return fmt.Errorf("parsing sock_fd: %w", err)
	}

	ch, err := channel.Map(shmFD)
	if err != nil {
		return fmt.Errorf("mapping control channel: %w", err)
	}
	unix.Close(shmFD)

	if err := seccomp.InstallBase(); err != nil {
		return fmt.Errorf("installing base seccomp filter: %w", err)
	}

	ch.SandboxAddr = uint64(uintptr(unsafe.Pointer(ch)))

	logger.Info("pbox-sandbox ready", "pid", os.Getpid())
	dispatchLoop(ch, true, logger)

	return channel.Unmap(ch)
}

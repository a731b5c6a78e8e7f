// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/ffi"
	"github.com/bureau-foundation/pbox/seccomp"
	"github.com/bureau-foundation/pbox/wait"
)

// dispatchLoop services requests on ch until it observes StateExit,
// mirroring the original's dispatch_loop. isControl gates
// RequestSpawnWorker, which only the control channel may honor.
//
// The closures a RequestCreateClosure allocates on this channel are
// held in a plain local slice, not the original's __thread-scoped
// array: this function already runs on one dedicated goroutine (see
// spawnWorker), so a local variable is exactly as exclusive as the
// original's thread-local storage, with no global registry needed.
func dispatchLoop(ch *channel.Channel, isControl bool, logger *slog.Logger) {
	var closures []*ffi.Closure
	defer func() {
		for _, c := range closures {
			c.Free()
		}
	}()

	for {
		state := wait.For(ch, channel.StateRequest, func(s channel.State) bool { return s == channel.StateExit })
		if state == channel.StateExit {
			return
		}

		switch ch.RequestType {
		case channel.RequestDlsym:
			handleDlsym(ch)
		case channel.RequestCall:
			handleCall(ch, logger)
		case channel.RequestRecvFD:
			handleRecvFD(ch)
		case channel.RequestSpawnWorker:
			if isControl {
				spawnWorker(ch.WorkerSHMFD, logger)
			} else {
				logger.Error("RequestSpawnWorker received on a non-control channel")
			}
		case channel.RequestCreateClosure:
			handleCreateClosure(ch, &closures, logger)
		default:
			logger.Error("unhandled request type", "type", ch.RequestType)
		}

		wait.SetState(ch, channel.StateResponse)
	}
}

// spawnWorker maps shmFD as a new worker channel and runs its dispatch
// loop on a dedicated OS thread, seccomp-restricted (beyond the base
// filter) to block clone/clone3 -- the Go analogue of the original's
// pthread_create-per-channel plus a per-thread worker filter. The
// goroutine never calls runtime.UnlockOSThread, so the underlying M is
// destroyed instead of returned to the scheduler's pool when the
// worker exits, which keeps a seccomp-narrowed thread from being
// silently reused for ordinary Go work afterward.
func spawnWorker(shmFD int32, logger *slog.Logger) {
	ch, err := channel.Map(int(shmFD))
	if err != nil {
		logger.Error("mapping worker channel", "error", err)
		return
	}

	go func() {
		runtime.LockOSThread()

		if err := unix.Close(int(shmFD)); err != nil {
			logger.Warn("closing worker shm fd after mmap", "error", err)
		}
		if err := seccomp.InstallWorker(); err != nil {
			logger.Error("installing worker seccomp filter", "error", err)
			channel.Unmap(ch)
			return
		}

		ch.SandboxAddr = uint64(uintptr(unsafe.Pointer(ch)))
		dispatchLoop(ch, false, logger)
		channel.Unmap(ch)
	}()
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/wait"
)

// ErrDead is returned (or silently propagated as a zero value, matching
// the original's void-returning entry points) whenever a channel
// operation observes StateDead instead of the response it was waiting
// for.
var ErrDead = errors.New("hostlib: sandbox process is dead")

// Caller is a handle to one worker channel: a private, sequential line
// of communication with its own sandboxed worker thread. It is the Go
// replacement for the original's implicit "current pthread" channel
// affinity -- see SPEC_FULL.md's Design Notes for why POSIX
// thread-local storage has no Go equivalent worth emulating.
//
// A Caller must not be used from more than one goroutine at a time;
// like the pthread-keyed channel it replaces, it models one logical
// sequential caller, not a connection pool.
type Caller struct {
	sandbox *Sandbox
	channel *channel.Channel
	shmFD   int

	mu sync.Mutex // held for the duration of any single call/dlsym/etc.

	idmem     unsafe.Pointer
	idmemSize int64
	idmemOff  int64
}

// NewCaller creates a new worker channel in sb and returns a handle to
// it. Call Close when the caller is done; Sandbox.Destroy also closes
// every outstanding Caller.
func (sb *Sandbox) NewCaller() (*Caller, error) {
	if sb.dead.Load() {
		return nil, ErrDead
	}

	ch, shmFD, err := channel.Create("pbox_worker")
	if err != nil {
		return nil, fmt.Errorf("hostlib: creating worker channel: %w", err)
	}

	// The fd transfer and the spawn-worker request that consumes it are
	// two steps of one handshake over the single shared control channel
	// and the one SCM_RIGHTS socket; both must run under controlMu or a
	// second concurrent NewCaller can interleave its own SetState/Sendmsg
	// into the middle of this one. The C original holds channel_lock
	// across the same span for the same reason.
	sb.controlMu.Lock()
	sandboxSHMFD, err := sb.sendFDOnChannel(sb.control, shmFD)
	if err != nil {
		sb.controlMu.Unlock()
		channel.Unmap(ch)
		unix.Close(shmFD)
		return nil, fmt.Errorf("hostlib: sending worker shm fd: %w", err)
	}

	sb.control.RequestType = channel.RequestSpawnWorker
	sb.control.WorkerSHMFD = int32(sandboxSHMFD)
	wait.SetState(sb.control, channel.StateRequest)
	wait.For(sb.control, channel.StateResponse, func(s channel.State) bool { return s == channel.StateDead })
	sb.control.StoreState(channel.StateIdle)
	sb.controlMu.Unlock()

	// The worker announces itself ready by publishing its own address
	// for this channel; poll until it does. This mirrors the original's
	// busy-wait on sandbox_channel_addr rather than adding a second
	// futex word purely for a one-time readiness signal.
	for ch.SandboxAddr == 0 {
		if sb.dead.Load() {
			channel.Unmap(ch)
			unix.Close(shmFD)
			return nil, ErrDead
		}
	}

	c := &Caller{sandbox: sb, channel: ch, shmFD: shmFD}

	sb.callersMu.Lock()
	sb.callers[c] = struct{}{}
	sb.callersMu.Unlock()

	return c, nil
}

// Close tears down this caller's worker channel: it tells the worker
// to exit, unmaps the host side, and forgets any identity-memory arena
// it held.
func (c *Caller) Close() error {
	c.sandbox.callersMu.Lock()
	_, tracked := c.sandbox.callers[c]
	delete(c.sandbox.callers, c)
	c.sandbox.callersMu.Unlock()

	if !tracked {
		return nil // already closed
	}
	c.closeLocked()
	return nil
}

// closeLocked performs the actual teardown; callers must have already
// removed c from sandbox.callers (or be Sandbox.Destroy, which is
// tearing down the whole map).
func (c *Caller) closeLocked() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.idmem != nil {
		idmem := unsafe.Slice((*byte)(c.idmem), int(c.idmemSize))
		if c.sandbox.cfg.LockIdentityMemory {
			unlockIdentityMemory(idmem)
		}
		unix.Munmap(idmem)
		c.idmem = nil
	}

	if !c.sandbox.dead.Load() {
		wait.SetState(c.channel, channel.StateExit)
	}
	channel.Unmap(c.channel)
	unix.Close(c.shmFD)
}

// Dlsym resolves symbol to an address in the sandbox process, using
// this caller's own channel (as opposed to Sandbox.dlsymControl, used
// only for the fixed startup symbol set).
func (c *Caller) Dlsym(symbol string) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := c.channel
	ch.RequestType = channel.RequestDlsym
	if err := ch.SetSymbolName(symbol); err != nil {
		return 0, err
	}

	wait.SetState(ch, channel.StateRequest)
	final := c.waitForResponse(ch)
	if final == channel.StateDead {
		return 0, ErrDead
	}
	ch.StoreState(channel.StateIdle)

	return ch.SymbolAddr, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/wait"
)

// fdDirectMax is the size of the direct-indexed fast path for the fd
// translation table; host fds at or above this fall back to the
// overflow map. Most processes never open more than a few dozen fds,
// so this covers the common case with a plain array lookup.
const fdDirectMax = 128

// fdTable translates host file descriptors to the sandbox fd numbers
// they were assigned when first sent over SCM_RIGHTS, so that a given
// host fd is only ever transferred once per Sandbox.
type fdTable struct {
	mu       sync.Mutex
	direct   [fdDirectMax]int32 // -1 = unmapped
	overflow map[int]int
}

func (t *fdTable) init() {
	for i := range t.direct {
		t.direct[i] = -1
	}
	t.overflow = make(map[int]int)
}

func (t *fdTable) lookup(hostFD int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hostFD >= 0 && hostFD < fdDirectMax {
		if sandboxFD := t.direct[hostFD]; sandboxFD >= 0 {
			return int(sandboxFD), true
		}
		return 0, false
	}
	sandboxFD, ok := t.overflow[hostFD]
	return sandboxFD, ok
}

func (t *fdTable) store(hostFD, sandboxFD int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hostFD >= 0 && hostFD < fdDirectMax {
		t.direct[hostFD] = int32(sandboxFD)
		return
	}
	t.overflow[hostFD] = sandboxFD
}

func (t *fdTable) forget(sandboxFD int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, v := range t.direct {
		if int(v) == sandboxFD {
			t.direct[i] = -1
			return
		}
	}
	for k, v := range t.overflow {
		if v == sandboxFD {
			delete(t.overflow, k)
			return
		}
	}
}

// SendFD translates a host file descriptor into a sandbox one,
// sending it over the SCM_RIGHTS socket the first time and returning
// the cached sandbox fd on subsequent calls with the same hostFD. It
// uses caller's worker channel to signal the sandbox side to receive
// the descriptor.
func (sb *Sandbox) SendFD(caller *Caller, hostFD int) (int, error) {
	if hostFD < 0 {
		return hostFD, nil
	}
	if sandboxFD, ok := sb.fds.lookup(hostFD); ok {
		return sandboxFD, nil
	}

	sandboxFD, err := sb.sendFDOnChannel(caller.channel, hostFD)
	if err != nil {
		return -1, err
	}
	sb.fds.store(hostFD, sandboxFD)
	return sandboxFD, nil
}

// sendFDOnChannel transfers fd over the SCM_RIGHTS socket without
// consulting or updating the translation cache, for callers (like the
// identity-memory mmap path) that intentionally want an uncached,
// one-shot transfer of a throwaway memfd.
func (sb *Sandbox) sendFDOnChannel(ch *channel.Channel, fd int) (int, error) {
	rights := unix.UnixRights(fd)
	if err := unix.Sendmsg(sb.sockFD, []byte{0}, rights, nil, 0); err != nil {
		return -1, fmt.Errorf("hostlib: sendmsg SCM_RIGHTS: %w", err)
	}

	ch.RequestType = channel.RequestRecvFD
	wait.SetState(ch, channel.StateRequest)
	final := wait.For(ch, channel.StateResponse, func(s channel.State) bool { return s == channel.StateDead })
	if final == channel.StateDead {
		return -1, ErrDead
	}
	ch.StoreState(channel.StateIdle)

	return int(ch.ReceivedFD), nil
}

// CloseFD calls close(2) inside the sandbox on the given sandbox fd
// and, on success, invalidates any cache entry pointing at it.
func (sb *Sandbox) CloseFD(caller *Caller, sandboxFD int) error {
	if sb.sym.close == 0 || sandboxFD < 0 {
		return fmt.Errorf("hostlib: close is unavailable or fd %d is invalid", sandboxFD)
	}

	var result uint64
	err := sb.CallRaw(caller, sb.sym.close, channel.TypeSint32,
		[]channel.Type{channel.TypeSint32}, []uint64{uint64(uint32(sandboxFD))}, &result)
	if err != nil {
		return err
	}
	if int32(result) == 0 {
		sb.fds.forget(sandboxFD)
	}
	return nil
}

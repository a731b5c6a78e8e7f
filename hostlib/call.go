// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"fmt"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/wait"
)

// CallRaw invokes funcAddr in the sandbox through caller's channel
// with the given signature and argument bit patterns, writing the raw
// result bytes into ret (which may be nil for a void return). Package
// pbox's Call wraps this with any-typed argument/result marshalling.
//
// argValues holds one uint64 per argument: for integer and pointer
// types this is the value itself (truncated to the type's width when
// packed into ArgStorage); for float/double it is the IEEE-754 bit
// pattern reinterpreted as a uint64. Package pbox's typed wrappers are
// responsible for that reinterpretation before calling down to this
// layer.
func (sb *Sandbox) CallRaw(caller *Caller, funcAddr uint64, retType channel.Type, argTypes []channel.Type, argValues []uint64, ret *uint64) error {
	if len(argTypes) != len(argValues) {
		return fmt.Errorf("hostlib: %d argument types but %d argument values", len(argTypes), len(argValues))
	}
	if len(argTypes) > channel.MaxArgs {
		return fmt.Errorf("hostlib: %d arguments exceeds the maximum of %d", len(argTypes), channel.MaxArgs)
	}

	caller.mu.Lock()
	defer caller.mu.Unlock()

	ch := caller.channel
	ch.RequestType = channel.RequestCall
	ch.FuncAddr = funcAddr
	ch.NArgs = int32(len(argTypes))
	ch.RetType = retType

	offset := 0
	for i, t := range argTypes {
		size := t.Size()
		if offset+size > channel.ArgStorageSize {
			return fmt.Errorf("hostlib: packed arguments exceed %d-byte arg storage", channel.ArgStorageSize)
		}
		ch.ArgTypes[i] = t
		ch.Args[i] = uint64(offset)
		putUint(ch.ArgStorage[offset:offset+size], argValues[i], size)
		offset += size
	}

	wait.SetState(ch, channel.StateRequest)
	final := caller.waitForResponse(ch)
	if final == channel.StateDead {
		return ErrDead
	}
	ch.StoreState(channel.StateIdle)

	if ret != nil {
		*ret = getUint(ch.ResultStorage[:retType.Size()])
	}
	return nil
}

// waitForResponse blocks until ch reaches StateResponse or StateDead,
// dispatching any re-entrant StateCallback requests the sandbox raises
// in the meantime. This is the Go analogue of pbox_wait_for_response.
//
// Every caller holds c.mu across its own request/response span, but
// c.mu is released for the duration of dispatchCallback: a host
// callback that re-enters the sandbox on this same Caller -- the
// "same channel reused across the nesting" case -- calls back into
// CallRaw/Dlsym/IdentityAlloc, which all lock c.mu themselves, and
// would self-deadlock on a plain non-reentrant mutex held across the
// dispatch. The channel's own StateCallback/StateRequest handshake is
// what actually serializes the nested call; c.mu only needs to guard
// this caller's request/response fields between distinct top-level
// calls, not across a callback's re-entry into the same one.
func (c *Caller) waitForResponse(ch *channel.Channel) channel.State {
	for {
		state := wait.For(ch, channel.StateResponse, func(s channel.State) bool {
			return s == channel.StateDead || s == channel.StateCallback || c.sandbox.dead.Load()
		})
		switch state {
		case channel.StateResponse, channel.StateDead:
			return state
		case channel.StateCallback:
			c.mu.Unlock()
			c.sandbox.dispatchCallback(ch)
			c.mu.Lock()
			wait.SetState(ch, channel.StateRequest)
		default:
			// The sandbox was already gone when this request's
			// StateRequest overwrote the StateDead the watcher stored.
			return channel.StateDead
		}
	}
}

// putUint writes the low n bytes of v into dst in little-endian order.
// n is always one of {1,2,4,8}, matching a channel.Type's Size().
func putUint(dst []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		dst[i] = byte(v >> (8 * i))
	}
}

// getUint reads src as a little-endian unsigned integer of len(src)
// bytes (0, 1, 2, 4, or 8).
func getUint(src []byte) uint64 {
	var v uint64
	for i, b := range src {
		v |= uint64(b) << (8 * i)
	}
	return v
}

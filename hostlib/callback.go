// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"fmt"
	"unsafe"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/ffi"
	"github.com/bureau-foundation/pbox/wait"
)

// hostCallback is one registered host function the sandbox may invoke
// re-entrantly: the function itself, its signature, and the prepared
// libffi call interface used to invoke it once the sandbox has
// unpacked its arguments into arg_storage.
type hostCallback struct {
	fn       unsafe.Pointer
	retType  channel.Type
	argTypes []channel.Type
	cif      *ffi.CIF
}

// RegisterCallback publishes fn (a Go function pointer obtained via
// purego/cgo, or any raw function pointer with a C calling
// convention) as a callback the sandbox can invoke by calling the
// closure address this returns. It fails if the sandbox has already
// registered channel.MaxClosures callbacks.
func (sb *Sandbox) RegisterCallback(caller *Caller, fn unsafe.Pointer, retType channel.Type, argTypes []channel.Type) (uint64, error) {
	if len(argTypes) > channel.MaxArgs {
		return 0, fmt.Errorf("hostlib: %d arguments exceeds the maximum of %d", len(argTypes), channel.MaxArgs)
	}

	cif, err := ffi.PrepCIF(retType, argTypes)
	if err != nil {
		return 0, fmt.Errorf("hostlib: preparing callback call interface: %w", err)
	}

	sb.callbacksMu.Lock()
	if len(sb.callbacks) >= channel.MaxClosures {
		sb.callbacksMu.Unlock()
		return 0, fmt.Errorf("hostlib: callback registry full (%d callbacks)", channel.MaxClosures)
	}
	id := len(sb.callbacks)
	sb.callbacks = append(sb.callbacks, hostCallback{fn: fn, retType: retType, argTypes: argTypes, cif: cif})
	sb.callbacksMu.Unlock()

	caller.mu.Lock()
	defer caller.mu.Unlock()

	ch := caller.channel
	ch.RequestType = channel.RequestCreateClosure
	ch.ClosureCallbackID = int32(id)
	ch.ClosureRetType = retType
	ch.ClosureNArgs = int32(len(argTypes))
	for i, t := range argTypes {
		ch.ClosureArgTypes[i] = t
	}

	wait.SetState(ch, channel.StateRequest)
	final := caller.waitForResponse(ch)
	if final == channel.StateDead {
		sb.callbacksMu.Lock()
		sb.callbacks = sb.callbacks[:id]
		sb.callbacksMu.Unlock()
		return 0, ErrDead
	}
	closureAddr := ch.ClosureAddr
	ch.StoreState(channel.StateIdle)

	return closureAddr, nil
}

// dispatchCallback runs the registered callback ch.CallbackID names,
// unpacking arguments out of ch.ArgStorage the same way the caller
// packed them for an outbound call. It is invoked whenever a channel
// this Sandbox owns reaches StateCallback.
func (sb *Sandbox) dispatchCallback(ch *channel.Channel) {
	id := int(ch.CallbackID)

	sb.callbacksMu.Lock()
	if id < 0 || id >= len(sb.callbacks) {
		sb.callbacksMu.Unlock()
		sb.cfg.Logger.Error("sandbox violated callback protocol", "pid", sb.pid, "callback_id", id)
		sb.cmd.Process.Kill()
		return
	}
	cb := sb.callbacks[id]
	sb.callbacksMu.Unlock()

	argPtrs := make([]unsafe.Pointer, len(cb.argTypes))
	for i, t := range cb.argTypes {
		offset := ch.Args[i]
		size := uint64(t.Size())
		// Offsets are sandbox-controlled; bounds-check before turning
		// them into a pointer into ArgStorage. Read once into a local
		// to avoid a TOCTOU window against a racing sandbox process.
		if offset >= uint64(channel.ArgStorageSize) || offset+size > uint64(channel.ArgStorageSize) {
			sb.cfg.Logger.Error("sandbox violated callback protocol", "pid", sb.pid, "callback_id", id)
			sb.cmd.Process.Kill()
			return
		}
		argPtrs[i] = unsafe.Pointer(&ch.ArgStorage[offset])
	}

	var retPtr unsafe.Pointer
	if cb.retType != channel.TypeVoid {
		retPtr = unsafe.Pointer(&ch.ResultStorage[0])
	}
	cb.cif.Call(cb.fn, retPtr, argPtrs)
}

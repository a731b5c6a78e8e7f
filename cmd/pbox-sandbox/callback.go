// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"unsafe"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/ffi"
	"github.com/bureau-foundation/pbox/wait"
)

// callbackUpcall returns the ffi.ClosureFunc a RequestCreateClosure
// installs on ch's closure. Every invocation of the resulting native
// function pointer packs its arguments into ch.ArgStorage exactly like
// an outbound RequestCall, publishes StateCallback with callbackID so
// the host knows which registered host callback to run, and blocks for
// StateRequest -- the host's reply -- before copying the result back
// out of ch.ResultStorage. This mirrors the original's closure_handler,
// which re-enters the host through the same channel a normal call
// leaves idle between requests.
func callbackUpcall(ch *channel.Channel, callbackID int32, retType channel.Type, argTypes []channel.Type) ffi.ClosureFunc {
	return func(ret unsafe.Pointer, args []unsafe.Pointer) {
		offset := uint64(0)
		for i, t := range argTypes {
			size := uint64(t.Size())
			if offset+size > uint64(channel.ArgStorageSize) {
				break
			}
			dst := unsafe.Pointer(&ch.ArgStorage[offset])
			copyScalar(dst, args[i], int(size))
			ch.ArgTypes[i] = t
			ch.Args[i] = offset
			offset += size
		}

		ch.NArgs = int32(len(argTypes))
		ch.RetType = retType
		ch.CallbackID = callbackID

		wait.SetState(ch, channel.StateCallback)
		state := wait.For(ch, channel.StateRequest, func(s channel.State) bool { return s == channel.StateDead })
		if state == channel.StateDead {
			return
		}

		if ret != nil && retType != channel.TypeVoid {
			copyScalar(ret, unsafe.Pointer(&ch.ResultStorage[0]), retType.Size())
		}
	}
}

func copyScalar(dst, src unsafe.Pointer, size int) {
	dstSlice := unsafe.Slice((*byte)(dst), size)
	srcSlice := unsafe.Slice((*byte)(src), size)
	copy(dstSlice, srcSlice)
}

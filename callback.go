// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"fmt"
	"unsafe"
)

// RegisterCallback publishes hostFn as a callback the sandbox can
// invoke through the closure address this returns. hostFn must already
// be a raw C-callable function pointer -- an unsafe.Pointer or uintptr
// obtained via a cgo //export trampoline, since a plain Go func value
// has no address a native caller could jump to. A *Caller is required
// (unlike the type sketch's caller-less signature) because publishing
// the closure is itself a channel request, and channel affinity is
// always explicit in this package -- see DESIGN.md's Open Question
// decisions.
func (s *Sandbox) RegisterCallback(caller *Caller, hostFn any, retType Type, argTypes []Type) (uintptr, error) {
	var fn unsafe.Pointer
	switch v := hostFn.(type) {
	case unsafe.Pointer:
		fn = v
	case uintptr:
		fn = unsafe.Pointer(v)
	default:
		return 0, fmt.Errorf("pbox: hostFn must be unsafe.Pointer or uintptr, got %T", hostFn)
	}

	addr, err := s.sb.RegisterCallback(caller.c, fn, retType, argTypes)
	return uintptr(addr), err
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ffi

/*
#cgo pkg-config: libffi
#include <ffi.h>
#include <stdlib.h>

static inline void pbox_ffi_call(ffi_cif *cif, void *fn, void *rvalue, void **avalue) {
    ffi_call(cif, (void (*)(void))fn, rvalue, avalue);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/bureau-foundation/pbox/channel"
)

// typeFor maps a wire type tag to the corresponding libffi type
// descriptor. This mirrors pbox_get_ffi_type in the original
// implementation exactly, including its fallback to ffi_type_void for
// any tag it does not recognize. Tags are read from the channel
// without validation, so an unknown tag does reach here and is
// treated as void.
func typeFor(t channel.Type) *C.ffi_type {
	switch t {
	case channel.TypeVoid:
		return &C.ffi_type_void
	case channel.TypeUint8:
		return &C.ffi_type_uint8
	case channel.TypeSint8:
		return &C.ffi_type_sint8
	case channel.TypeUint16:
		return &C.ffi_type_uint16
	case channel.TypeSint16:
		return &C.ffi_type_sint16
	case channel.TypeUint32:
		return &C.ffi_type_uint32
	case channel.TypeSint32:
		return &C.ffi_type_sint32
	case channel.TypeUint64:
		return &C.ffi_type_uint64
	case channel.TypeSint64:
		return &C.ffi_type_sint64
	case channel.TypeFloat:
		return &C.ffi_type_float
	case channel.TypeDouble:
		return &C.ffi_type_double
	case channel.TypePointer:
		return &C.ffi_type_pointer
	default:
		return &C.ffi_type_void
	}
}

// CIF is a prepared libffi call interface: the signature-driven
// invocation plan libffi builds once per distinct (ret, args)
// signature and then reuses across many calls. The host builds one per
// registered callback and reuses it for every dispatch of that
// callback; the sandbox builds a fresh one for each RequestCall.
type CIF struct {
	cif      C.ffi_cif
	argTypes []*C.ffi_type // kept alive: cif holds a raw pointer into this slice
}

// PrepCIF prepares a call interface for a function returning retType
// and accepting argTypes, using the platform's default C calling
// convention.
func PrepCIF(retType channel.Type, argTypes []channel.Type) (*CIF, error) {
	if len(argTypes) > channel.MaxArgs {
		return nil, fmt.Errorf("ffi: %d arguments exceeds the maximum of %d", len(argTypes), channel.MaxArgs)
	}

	c := &CIF{argTypes: make([]*C.ffi_type, len(argTypes))}
	for i, t := range argTypes {
		c.argTypes[i] = typeFor(t)
	}

	var argTypesPtr **C.ffi_type
	if len(c.argTypes) > 0 {
		argTypesPtr = &c.argTypes[0]
	}

	status := C.ffi_prep_cif(&c.cif, C.FFI_DEFAULT_ABI, C.uint(len(argTypes)), typeFor(retType), argTypesPtr)
	if status != C.FFI_OK {
		return nil, fmt.Errorf("ffi: ffi_prep_cif failed with status %d", status)
	}
	return c, nil
}

// Call invokes fn through the prepared interface. ret and each entry
// of args must point at storage at least as large as the
// corresponding type's natural size; ret may be nil for a void return.
func (c *CIF) Call(fn unsafe.Pointer, ret unsafe.Pointer, args []unsafe.Pointer) {
	var argsPtr *unsafe.Pointer
	if len(args) > 0 {
		argsPtr = &args[0]
	}
	C.pbox_ffi_call(&c.cif, fn, ret, argsPtr)
}

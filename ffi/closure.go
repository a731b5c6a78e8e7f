// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ffi

/*
#include <ffi.h>

extern void pboxClosureTrampoline(ffi_cif *cif, void *ret, void **args, void *userdata);

static void *pbox_trampoline_ptr(void) {
    return (void*) pboxClosureTrampoline;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// ClosureFunc is invoked whenever native code calls through a closure
// built by [NewClosure]. ret points at storage sized for the
// closure's return type (or nil for void); args holds one pointer per
// argument, each pointing at storage sized for that argument's type.
// Implementations must not retain ret or the entries of args beyond
// the call -- libffi reuses the backing storage for the next call.
type ClosureFunc func(ret unsafe.Pointer, args []unsafe.Pointer)

// Closure is an executable trampoline allocated by libffi: native
// code can call it like any other function pointer, and each call is
// routed back into the registered [ClosureFunc]. This is how the
// sandbox process exposes a host-registered callback as a real
// function pointer that untrusted native code can invoke directly.
type Closure struct {
	id      uint32
	mem     unsafe.Pointer // writable alias libffi allocated
	CodeAddr unsafe.Pointer // executable alias to hand to native code
	cif     *CIF
	fn      ClosureFunc
}

var (
	registryMu sync.Mutex
	registry   = map[uint32]*Closure{}
	nextID     uint32
)

// NewClosure allocates and prepares an executable closure that, when
// called through its CodeAddr with the signature described by cif,
// invokes fn.
func NewClosure(cif *CIF, fn ClosureFunc) (*Closure, error) {
	var codeAddr unsafe.Pointer
	mem := C.ffi_closure_alloc(C.size_t(unsafe.Sizeof(C.ffi_closure{})), &codeAddr)
	if mem == nil {
		return nil, fmt.Errorf("ffi: ffi_closure_alloc failed")
	}

	registryMu.Lock()
	nextID++
	id := nextID
	registryMu.Unlock()

	c := &Closure{id: id, mem: mem, CodeAddr: codeAddr, cif: cif, fn: fn}

	registryMu.Lock()
	registry[id] = c
	registryMu.Unlock()

	status := C.ffi_prep_closure_loc(
		(*C.ffi_closure)(mem),
		&cif.cif,
		(*[0]byte)(C.pbox_trampoline_ptr()),
		unsafe.Pointer(uintptr(id)),
		codeAddr,
	)
	if status != C.FFI_OK {
		c.Free()
		return nil, fmt.Errorf("ffi: ffi_prep_closure_loc failed with status %d", status)
	}
	return c, nil
}

// Free releases the closure. Calling through CodeAddr after Free is
// undefined behavior, exactly as with any freed libffi closure.
func (c *Closure) Free() {
	registryMu.Lock()
	delete(registry, c.id)
	registryMu.Unlock()
	C.ffi_closure_free(c.mem)
}

//export pboxClosureTrampoline
func pboxClosureTrampoline(cif *C.ffi_cif, ret unsafe.Pointer, args *unsafe.Pointer, userdata unsafe.Pointer) {
	id := uint32(uintptr(userdata))

	registryMu.Lock()
	c, ok := registry[id]
	registryMu.Unlock()
	if !ok {
		return
	}

	nargs := int(cif.nargs)
	argSlice := unsafe.Slice(args, nargs)
	c.fn(ret, argSlice)
}

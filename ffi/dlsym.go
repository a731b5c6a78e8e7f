// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ffi

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import "unsafe"

// Dlsym resolves symbol against the global symbol table (RTLD_DEFAULT),
// the same lookup the sandbox executable performs for every
// RequestDlsym it receives. It returns 0 without an error if the
// symbol is not found, mirroring dlsym's own "NULL means not found, use
// dlerror to distinguish that from a symbol whose value is NULL"
// ambiguity -- callers here only ever care about "found" vs "not
// found", so a 0 result is reported as such rather than surfaced as an
// error.
func Dlsym(symbol string) uintptr {
	cname := C.CString(symbol)
	defer C.free(unsafe.Pointer(cname))

	addr := C.dlsym(C.RTLD_DEFAULT, cname)
	return uintptr(addr)
}

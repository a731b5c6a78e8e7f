// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ffi_test

/*
#include <stdlib.h>

extern int pbox_test_add(int a, int b) {
    return a + b;
}
*/
import "C"

import (
	"testing"
	"unsafe"

	"github.com/bureau-foundation/pbox/channel"
	. "github.com/bureau-foundation/pbox/ffi"
)

func TestPrepCIFAndCallAdd(t *testing.T) {
	cif, err := PrepCIF(channel.TypeSint32, []channel.Type{channel.TypeSint32, channel.TypeSint32})
	if err != nil {
		t.Fatalf("PrepCIF() error = %v", err)
	}

	a := C.int(3)
	b := C.int(4)
	var ret C.int
	args := []unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b)}

	cif.Call(C.pbox_test_add, unsafe.Pointer(&ret), args)

	if int32(ret) != 7 {
		t.Fatalf("call returned %d, want 7", int32(ret))
	}
}

func TestPrepCIFRejectsTooManyArgs(t *testing.T) {
	tooMany := make([]channel.Type, channel.MaxArgs+1)
	for i := range tooMany {
		tooMany[i] = channel.TypeSint32
	}
	if _, err := PrepCIF(channel.TypeVoid, tooMany); err == nil {
		t.Fatal("PrepCIF() with too many arguments: expected error, got nil")
	}
}

func TestNewClosureRoundtrip(t *testing.T) {
	cif, err := PrepCIF(channel.TypeSint32, []channel.Type{channel.TypeSint32, channel.TypeSint32})
	if err != nil {
		t.Fatalf("PrepCIF() error = %v", err)
	}

	called := false
	closure, err := NewClosure(cif, func(ret unsafe.Pointer, args []unsafe.Pointer) {
		called = true
		x := *(*C.int)(args[0])
		y := *(*C.int)(args[1])
		*(*C.int)(ret) = x + y
	})
	if err != nil {
		t.Fatalf("NewClosure() error = %v", err)
	}
	defer closure.Free()

	a := C.int(10)
	b := C.int(32)
	var ret C.int
	cif.Call(closure.CodeAddr, unsafe.Pointer(&ret), []unsafe.Pointer{unsafe.Pointer(&a), unsafe.Pointer(&b)})

	if !called {
		t.Fatal("closure was never invoked")
	}
	if int32(ret) != 42 {
		t.Fatalf("closure call returned %d, want 42", int32(ret))
	}
}

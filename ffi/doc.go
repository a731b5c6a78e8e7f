// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ffi is a thin cgo binding to libffi, providing what the call
// engine needs: preparing a call interface for a signature described
// by [channel.Type] tags and invoking it, building executable closures
// (in the sandbox process) that call back into the host, and resolving
// symbols through [Dlsym].
//
// This package does not attempt to be a general-purpose FFI wrapper.
// From libffi it uses only ffi_prep_cif, ffi_call, ffi_closure_alloc,
// ffi_prep_closure_loc and ffi_closure_free.
package ffi

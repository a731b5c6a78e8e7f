// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pbox is the public, typed facade over hostlib's Sandbox and
// Caller: it accepts and returns ordinary Go values (any, uintptr, []byte)
// at the API boundary and handles the uint64 bit-pattern marshalling
// hostlib's call layer works in underneath.
package pbox

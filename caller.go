// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"github.com/bureau-foundation/pbox/hostlib"
)

// Caller is a handle to one worker channel: a private, sequential line
// of communication with its own sandboxed worker thread. Obtain one
// from Sandbox.NewCaller and Close it when done.
type Caller struct {
	c *hostlib.Caller
}

// Close tears down this caller's worker channel.
func (c *Caller) Close() error { return c.c.Close() }

// Dlsym resolves symbol to an address in the sandbox process.
func (s *Sandbox) Dlsym(caller *Caller, symbol string) (uintptr, error) {
	addr, err := caller.c.Dlsym(symbol)
	return uintptr(addr), err
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"github.com/bureau-foundation/pbox/hostlib"
)

// Sandbox is a running sandboxed process. It wraps *hostlib.Sandbox,
// translating the uint64-oriented call layer into the any/uintptr
// surface documented for this package.
type Sandbox struct {
	sb *hostlib.Sandbox
}

// Create forks executablePath as a sandboxed process and returns a
// handle to it, applying opts over the package defaults.
func Create(executablePath string, opts ...Option) (*Sandbox, error) {
	cfg := hostlib.Config{BinaryPath: executablePath}
	for _, opt := range opts {
		opt(&cfg)
	}
	sb, err := hostlib.Create(cfg)
	if err != nil {
		return nil, err
	}
	return &Sandbox{sb: sb}, nil
}

// Destroy kills the sandbox process and releases every resource this
// Sandbox holds, including every outstanding Caller.
func (s *Sandbox) Destroy() error { return s.sb.Destroy() }

// PID returns the sandbox process's process ID.
func (s *Sandbox) PID() int { return s.sb.PID() }

// Alive reports whether the sandbox process is still running.
func (s *Sandbox) Alive() bool { return s.sb.Alive() }

// NewCaller creates a new worker channel against this sandbox and
// returns a handle to it. A *Caller is the honest Go stand-in for "the
// calling OS thread" that the original's per-pthread channel affinity
// relied on -- see SPEC_FULL.md's Design Notes / REDESIGN FLAGS. It is
// a method here, not the package-level constructor the type sketch
// implies, because a caller channel is meaningless without the sandbox
// it talks to; DESIGN.md's Open Question decisions records this.
func (s *Sandbox) NewCaller() (*Caller, error) {
	c, err := s.sb.NewCaller()
	if err != nil {
		return nil, err
	}
	return &Caller{c: c}, nil
}

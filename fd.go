// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

// SendFD translates a host file descriptor into a sandbox one over
// SCM_RIGHTS, returning the sandbox-side fd number.
func (s *Sandbox) SendFD(caller *Caller, hostFD int) (int, error) {
	return s.sb.SendFD(caller.c, hostFD)
}

// CloseFD closes sandboxFD inside the sandbox.
func (s *Sandbox) CloseFD(caller *Caller, sandboxFD int) error {
	return s.sb.CloseFD(caller.c, sandboxFD)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

// MmapIdentity creates a shared memory region mapped at the same
// virtual address in both the host and the sandbox process.
func (s *Sandbox) MmapIdentity(caller *Caller, length uintptr, prot int) (uintptr, error) {
	addr, err := s.sb.MmapIdentity(caller.c, uint64(length), int32(prot))
	return uintptr(addr), err
}

// MunmapIdentity releases an identity mapping on both sides.
func (s *Sandbox) MunmapIdentity(caller *Caller, addr, length uintptr) error {
	return s.sb.MunmapIdentity(caller.c, uint64(addr), uint64(length))
}

// IdentityAlloc bump-allocates size bytes out of caller's
// identity-mapped arena, lazily creating the arena on first use.
func (s *Sandbox) IdentityAlloc(caller *Caller, size uintptr) (uintptr, error) {
	addr, err := s.sb.IdentityAlloc(caller.c, uint64(size))
	return uintptr(addr), err
}

// IdentityReset rewinds caller's identity arena bump pointer to the
// start, without unmapping the underlying region.
func (s *Sandbox) IdentityReset(caller *Caller) {
	s.sb.IdentityReset(caller.c)
}

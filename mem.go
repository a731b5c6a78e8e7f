// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

// Malloc calls malloc(size) inside the sandbox.
func (s *Sandbox) Malloc(caller *Caller, size uintptr) (uintptr, error) {
	addr, err := s.sb.Malloc(caller.c, uint64(size))
	return uintptr(addr), err
}

// Calloc calls calloc(nmemb, size) inside the sandbox.
func (s *Sandbox) Calloc(caller *Caller, nmemb, size uintptr) (uintptr, error) {
	addr, err := s.sb.Calloc(caller.c, uint64(nmemb), uint64(size))
	return uintptr(addr), err
}

// Realloc calls realloc(ptr, size) inside the sandbox.
func (s *Sandbox) Realloc(caller *Caller, ptr uintptr, size uintptr) (uintptr, error) {
	addr, err := s.sb.Realloc(caller.c, uint64(ptr), uint64(size))
	return uintptr(addr), err
}

// Free calls free(ptr) inside the sandbox.
func (s *Sandbox) Free(caller *Caller, ptr uintptr) error {
	return s.sb.Free(caller.c, uint64(ptr))
}

// Mmap translates hostFD to a sandbox fd and maps it into the sandbox's
// address space.
func (s *Sandbox) Mmap(caller *Caller, addr uintptr, length uintptr, prot, flags, hostFD int, offset int64) (uintptr, error) {
	got, err := s.sb.Mmap(caller.c, uint64(addr), uint64(length), int32(prot), int32(flags), hostFD, offset)
	return uintptr(got), err
}

// MmapBoxFD maps sandboxFD (a fd number already valid inside the
// sandbox) into the sandbox's address space, without any host-side fd
// translation.
func (s *Sandbox) MmapBoxFD(caller *Caller, addr, length uintptr, prot, flags, sandboxFD int, offset int64) (uintptr, error) {
	got, err := s.sb.MmapBoxFD(caller.c, uint64(addr), uint64(length), int32(prot), int32(flags), int32(sandboxFD), offset)
	return uintptr(got), err
}

// Munmap calls munmap(addr, length) inside the sandbox.
func (s *Sandbox) Munmap(caller *Caller, addr, length uintptr) error {
	return s.sb.Munmap(caller.c, uint64(addr), uint64(length))
}

// CopyTo copies src into sandbox memory starting at dest.
func (s *Sandbox) CopyTo(caller *Caller, dest uintptr, src []byte) error {
	return s.sb.CopyTo(caller.c, uint64(dest), src)
}

// CopyFrom copies len(dst) bytes of sandbox memory starting at src
// into dst.
func (s *Sandbox) CopyFrom(caller *Caller, dst []byte, src uintptr) error {
	return s.sb.CopyFrom(caller.c, dst, uint64(src))
}

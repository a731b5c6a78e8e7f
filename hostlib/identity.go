// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/procmaps"
)

// MmapIdentity creates an anonymous shared memory region and maps it
// at the same virtual address in both the host and the sandbox
// process, so pointers into it are valid on either side without
// translation. It tries the fast path first -- letting the kernel
// place the host mapping, then asking the sandbox to map the same
// fd/length/prot at that exact address with MAP_FIXED_NOREPLACE -- and
// falls back to searching /proc/[pid]/maps on both processes for a
// common free region if the fast path collides with something already
// mapped in the sandbox.
func (sb *Sandbox) MmapIdentity(caller *Caller, length uint64, prot int32) (uint64, error) {
	if sb.sym.mmap == 0 {
		return 0, fmt.Errorf("hostlib: mmap symbol not resolved")
	}

	memFD, err := unix.MemfdCreate("pbox_shared", unix.MFD_CLOEXEC)
	if err != nil {
		return 0, fmt.Errorf("hostlib: memfd_create: %w", err)
	}
	defer unix.Close(memFD)
	if err := unix.Ftruncate(memFD, int64(length)); err != nil {
		return 0, fmt.Errorf("hostlib: ftruncate: %w", err)
	}

	hostAddr, err := unix.Mmap(memFD, 0, int(length), int(prot), unix.MAP_SHARED)
	if err != nil {
		return 0, fmt.Errorf("hostlib: host mmap: %w", err)
	}
	hostBase := uint64(uintptr(unsafe.Pointer(&hostAddr[0])))

	// Sent without caching: this memfd is a one-shot transfer, not a
	// long-lived fd worth translating repeatedly.
	sandboxFD, err := sb.sendFDOnChannel(caller.channel, memFD)
	if err != nil {
		unix.Munmap(hostAddr)
		return 0, err
	}

	flags := int32(unix.MAP_SHARED | unix.MAP_FIXED_NOREPLACE)
	sandboxAddr, err := sb.mmapCall(caller, hostBase, length, prot, flags, int32(sandboxFD), 0)
	if err == nil && sandboxAddr == hostBase {
		if sb.cfg.LockIdentityMemory {
			if lockErr := lockIdentityMemory(hostAddr); lockErr != nil {
				sb.Munmap(caller, sandboxAddr, length)
				unix.Munmap(hostAddr)
				return 0, lockErr
			}
		}
		return hostBase, nil
	}

	if err == nil && sandboxAddr != mmapFailed {
		sb.Munmap(caller, sandboxAddr, length)
	}
	unix.Munmap(hostAddr)

	commonAddr, err := procmaps.FindCommonFreeAddress(os.Getpid(), sb.pid, uintptr(length))
	if err != nil {
		return 0, fmt.Errorf("hostlib: finding common free address: %w", err)
	}

	hostAddr2, err := mmapAt(commonAddr, length, uintptr(prot), unix.MAP_SHARED|unix.MAP_FIXED_NOREPLACE, memFD, 0)
	if err != nil {
		return 0, fmt.Errorf("hostlib: host mmap at %#x: %w", commonAddr, err)
	}

	sandboxAddr, err = sb.mmapCall(caller, uint64(commonAddr), length, prot, flags, int32(sandboxFD), 0)
	if err != nil || sandboxAddr != uint64(commonAddr) {
		if err == nil && sandboxAddr != mmapFailed {
			sb.Munmap(caller, sandboxAddr, length)
		}
		unix.Munmap(hostAddr2)
		return 0, fmt.Errorf("hostlib: sandbox could not map identity region at negotiated address %#x", commonAddr)
	}

	if sb.cfg.LockIdentityMemory {
		if lockErr := lockIdentityMemory(hostAddr2); lockErr != nil {
			sb.Munmap(caller, sandboxAddr, length)
			unix.Munmap(hostAddr2)
			return 0, lockErr
		}
	}

	return uint64(commonAddr), nil
}

// lockIdentityMemory mlocks data into physical RAM and excludes it from
// core dumps, the same pair of calls lib/secret's Buffer makes for a
// credential buffer -- opt-in here via Config.LockIdentityMemory since
// the identity arena is typically much larger than a secret buffer.
func lockIdentityMemory(data []byte) error {
	if err := unix.Mlock(data); err != nil {
		return fmt.Errorf("hostlib: mlock identity region: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		return fmt.Errorf("hostlib: madvise(MADV_DONTDUMP) identity region: %w", err)
	}
	return nil
}

// unlockIdentityMemory reverses lockIdentityMemory. Errors are not
// fatal to the unmap that follows -- the region is going away either
// way, so failing to munlock it first only matters if munmap itself
// then fails, which the caller already surfaces.
func unlockIdentityMemory(data []byte) {
	unix.Munlock(data)
}

// mmapAt maps length bytes of fd at offset into the calling process's
// address space at the exact address requested, via the raw mmap
// syscall -- unix.Mmap's convenience wrapper always lets the kernel
// choose the address, so a MAP_FIXED_NOREPLACE request has to go
// through unix.Syscall6 directly, the same way package wait reaches
// past x/sys/unix's typed wrappers for SYS_FUTEX.
func mmapAt(addr uintptr, length uint64, prot uintptr, flags int, fd int, offset int64) ([]byte, error) {
	ret, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(length), prot, uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return nil, errno
	}
	if ret != uintptr(addr) {
		unix.Syscall6(unix.SYS_MUNMAP, ret, uintptr(length), 0, 0, 0, 0)
		return nil, fmt.Errorf("hostlib: mmap placed region at %#x, not requested %#x", ret, addr)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ret)), int(length)), nil
}

// MunmapIdentity releases an identity mapping on both sides. Both
// unmaps are attempted even if the first fails, matching the
// original's "both must succeed" semantics for reporting an error.
func (sb *Sandbox) MunmapIdentity(caller *Caller, addr, length uint64) error {
	sandboxErr := sb.Munmap(caller, addr, length)

	hostRegion := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(length))
	if sb.cfg.LockIdentityMemory {
		unlockIdentityMemory(hostRegion)
	}
	hostErr := unix.Munmap(hostRegion)

	if sandboxErr != nil || hostErr != nil {
		return fmt.Errorf("hostlib: munmap identity: sandbox=%v host=%v", sandboxErr, hostErr)
	}
	return nil
}

// IdentityAlloc bump-allocates size bytes (16-byte aligned) out of
// caller's identity-mapped arena, lazily creating the arena (sized per
// Sandbox.Config.IdentityArenaSize) on first use.
func (sb *Sandbox) IdentityAlloc(caller *Caller, size uint64) (uint64, error) {
	caller.mu.Lock()
	defer caller.mu.Unlock()

	if caller.idmem == nil {
		caller.mu.Unlock()
		base, err := sb.MmapIdentity(caller, uint64(sb.cfg.IdentityArenaSize), unix.PROT_READ|unix.PROT_WRITE)
		caller.mu.Lock()
		if err != nil {
			return 0, fmt.Errorf("hostlib: allocating identity arena: %w", err)
		}
		caller.idmem = unsafe.Pointer(uintptr(base))
		caller.idmemSize = sb.cfg.IdentityArenaSize
		caller.idmemOff = 0
	}

	aligned := (size + 15) &^ 15
	if caller.idmemOff+int64(aligned) > caller.idmemSize {
		return 0, fmt.Errorf("hostlib: identity arena exhausted (%d/%d bytes used)", caller.idmemOff, caller.idmemSize)
	}

	addr := uint64(uintptr(caller.idmem)) + uint64(caller.idmemOff)
	caller.idmemOff += int64(aligned)
	return addr, nil
}

// IdentityReset rewinds caller's identity arena bump pointer to the
// start, without unmapping the underlying region. Callers must ensure
// nothing sandboxed still holds a live pointer into the arena.
func (sb *Sandbox) IdentityReset(caller *Caller) {
	caller.mu.Lock()
	defer caller.mu.Unlock()
	caller.idmemOff = 0
}

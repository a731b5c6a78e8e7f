// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"fmt"
	"unsafe"

	"github.com/bureau-foundation/pbox/channel"
)

// memStorageOffset is MemStorage's byte offset within Channel, needed
// to compute the sandbox-side address of a channel's mem_storage
// array from the sandbox-reported base address of the channel itself.
var memStorageOffset = uint64(unsafe.Offsetof(channel.Channel{}.MemStorage))

// Malloc calls malloc(size) inside the sandbox and returns the
// resulting sandbox-address pointer, or 0 if malloc is unavailable or
// fails.
func (sb *Sandbox) Malloc(caller *Caller, size uint64) (uint64, error) {
	if sb.sym.malloc == 0 {
		return 0, fmt.Errorf("hostlib: malloc symbol not resolved")
	}
	var ret uint64
	err := sb.CallRaw(caller, sb.sym.malloc, channel.TypePointer,
		[]channel.Type{channel.TypeUint64}, []uint64{size}, &ret)
	return ret, err
}

// Calloc calls calloc(nmemb, size) inside the sandbox.
func (sb *Sandbox) Calloc(caller *Caller, nmemb, size uint64) (uint64, error) {
	if sb.sym.calloc == 0 {
		return 0, fmt.Errorf("hostlib: calloc symbol not resolved")
	}
	var ret uint64
	err := sb.CallRaw(caller, sb.sym.calloc, channel.TypePointer,
		[]channel.Type{channel.TypeUint64, channel.TypeUint64}, []uint64{nmemb, size}, &ret)
	return ret, err
}

// Realloc calls realloc(p, size) inside the sandbox.
func (sb *Sandbox) Realloc(caller *Caller, p, size uint64) (uint64, error) {
	if sb.sym.realloc == 0 {
		return 0, fmt.Errorf("hostlib: realloc symbol not resolved")
	}
	var ret uint64
	err := sb.CallRaw(caller, sb.sym.realloc, channel.TypePointer,
		[]channel.Type{channel.TypePointer, channel.TypeUint64}, []uint64{p, size}, &ret)
	return ret, err
}

// Free calls free(p) inside the sandbox.
func (sb *Sandbox) Free(caller *Caller, p uint64) error {
	if sb.sym.free == 0 {
		return fmt.Errorf("hostlib: free symbol not resolved")
	}
	return sb.CallRaw(caller, sb.sym.free, channel.TypeVoid,
		[]channel.Type{channel.TypePointer}, []uint64{p}, nil)
}

// mmapFailed is the sandbox-side mmap(2) failure sentinel, MAP_FAILED
// -- (void *)-1, all bits set -- not 0. A genuine failure address must
// be compared against this, not against zero.
const mmapFailed = ^uint64(0)

// mmapArgTypes and mmapCall are shared by MmapBoxFD, Mmap, and the
// identity-memory path, all of which invoke sandbox mmap with the
// same six-argument signature.
var mmapArgTypes = []channel.Type{
	channel.TypePointer, channel.TypeUint64,
	channel.TypeSint32, channel.TypeSint32,
	channel.TypeSint32, channel.TypeSint64,
}

func (sb *Sandbox) mmapCall(caller *Caller, addr, length uint64, prot, flags, fd int32, offset int64) (uint64, error) {
	if sb.sym.mmap == 0 {
		return 0, fmt.Errorf("hostlib: mmap symbol not resolved")
	}
	args := []uint64{addr, length, uint64(uint32(prot)), uint64(uint32(flags)), uint64(uint32(fd)), uint64(offset)}
	var ret uint64
	err := sb.CallRaw(caller, sb.sym.mmap, channel.TypePointer, mmapArgTypes, args, &ret)
	return ret, err
}

// MmapBoxFD maps sandboxFD (an fd number already valid inside the
// sandbox) into the sandbox's address space, without any host-side fd
// translation.
func (sb *Sandbox) MmapBoxFD(caller *Caller, addr, length uint64, prot, flags int32, sandboxFD int32, offset int64) (uint64, error) {
	return sb.mmapCall(caller, addr, length, prot, flags, sandboxFD, offset)
}

// Mmap translates hostFD to a sandbox fd (sending it over SCM_RIGHTS
// if this is the first use of that fd) and then maps it into the
// sandbox's address space.
func (sb *Sandbox) Mmap(caller *Caller, addr, length uint64, prot, flags int32, hostFD int, offset int64) (uint64, error) {
	sandboxFD, err := sb.SendFD(caller, hostFD)
	if err != nil {
		return 0, err
	}
	return sb.mmapCall(caller, addr, length, prot, flags, int32(sandboxFD), offset)
}

// Munmap calls munmap(addr, length) inside the sandbox.
func (sb *Sandbox) Munmap(caller *Caller, addr, length uint64) error {
	if sb.sym.munmap == 0 {
		return fmt.Errorf("hostlib: munmap symbol not resolved")
	}
	var result uint64
	err := sb.CallRaw(caller, sb.sym.munmap, channel.TypeSint32,
		[]channel.Type{channel.TypePointer, channel.TypeUint64}, []uint64{addr, length}, &result)
	if err != nil {
		return err
	}
	if int32(result) != 0 {
		return fmt.Errorf("hostlib: sandbox munmap failed")
	}
	return nil
}

// CopyTo copies n bytes from a host-owned src slice into sandbox
// memory at dest, staging the transfer through the channel's
// mem_storage in MemStorageSize-sized chunks and asking the sandbox to
// memcpy each chunk from mem_storage into dest.
func (sb *Sandbox) CopyTo(caller *Caller, dest uint64, src []byte) error {
	if sb.sym.memcpy == 0 {
		return fmt.Errorf("hostlib: memcpy symbol not resolved")
	}

	caller.mu.Lock()
	ch := caller.channel
	memStorageAddr := ch.SandboxAddr + memStorageOffset
	caller.mu.Unlock()

	for len(src) > 0 {
		chunk := src
		if len(chunk) > channel.MemStorageSize {
			chunk = chunk[:channel.MemStorageSize]
		}

		caller.mu.Lock()
		copy(ch.MemStorage[:], chunk)
		caller.mu.Unlock()

		var ret uint64
		args := []uint64{dest, memStorageAddr, uint64(len(chunk))}
		if err := sb.CallRaw(caller, sb.sym.memcpy, channel.TypePointer,
			[]channel.Type{channel.TypePointer, channel.TypePointer, channel.TypeUint64}, args, &ret); err != nil {
			return err
		}

		dest += uint64(len(chunk))
		src = src[len(chunk):]
	}
	return nil
}

// CopyFrom copies n bytes from sandbox memory at src into a
// host-owned dst slice, the mirror image of CopyTo: it asks the
// sandbox to memcpy each chunk into mem_storage, then copies out of
// the shared channel.
func (sb *Sandbox) CopyFrom(caller *Caller, dst []byte, src uint64) error {
	if sb.sym.memcpy == 0 {
		return fmt.Errorf("hostlib: memcpy symbol not resolved")
	}

	caller.mu.Lock()
	ch := caller.channel
	memStorageAddr := ch.SandboxAddr + memStorageOffset
	caller.mu.Unlock()

	for len(dst) > 0 {
		chunk := len(dst)
		if chunk > channel.MemStorageSize {
			chunk = channel.MemStorageSize
		}

		var ret uint64
		args := []uint64{memStorageAddr, src, uint64(chunk)}
		if err := sb.CallRaw(caller, sb.sym.memcpy, channel.TypePointer,
			[]channel.Type{channel.TypePointer, channel.TypePointer, channel.TypeUint64}, args, &ret); err != nil {
			return err
		}

		caller.mu.Lock()
		copy(dst[:chunk], ch.MemStorage[:chunk])
		caller.mu.Unlock()

		dst = dst[chunk:]
		src += uint64(chunk)
	}
	return nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// State is the channel's ownership word. Whichever side observes the
// state it is waiting for owns every other field in the Channel until
// it writes the next state and wakes the other side.
type State int32

const (
	// StateIdle means no request is outstanding; the sandbox worker is
	// parked waiting for StateRequest.
	StateIdle State = iota
	// StateRequest means the host has published a request and is
	// waiting for StateResponse, StateCallback or StateDead.
	StateRequest
	// StateResponse means the sandbox has published a result; its
	// worker is back waiting for StateRequest or StateExit, and the
	// host returns the channel to StateIdle once it has read the result.
	StateResponse
	// StateExit tells the sandbox worker owning this channel to tear
	// itself down; there is no response to this state.
	StateExit
	// StateDead is terminal: the sandbox process that owned this
	// channel is gone. Every blocked or future channel operation
	// observes StateDead instead of hanging.
	StateDead
	// StateCallback means the sandbox is re-entrantly asking the host
	// to run a registered callback and is waiting for StateRequest
	// (the host's reply) or StateDead.
	StateCallback
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequest:
		return "request"
	case StateResponse:
		return "response"
	case StateExit:
		return "exit"
	case StateDead:
		return "dead"
	case StateCallback:
		return "callback"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// RequestType selects which union of Channel fields a StateRequest
// carries.
type RequestType int32

const (
	// RequestNone marks a channel that has never carried a request.
	RequestNone RequestType = iota
	// RequestDlsym resolves FuncName to an address via dlsym-equivalent
	// symbol lookup in the sandbox.
	RequestDlsym
	// RequestCall invokes FuncAddr with the arguments described by
	// NArgs/RetType/ArgTypes/Args.
	RequestCall
	// RequestRecvFD asks the sandbox to receive one file descriptor
	// over its control socket via SCM_RIGHTS and record it as
	// ReceivedFD.
	RequestRecvFD
	// RequestSpawnWorker asks the sandbox to map WorkerSHMFD as a new
	// worker channel and start a dispatch loop over it. Only valid on
	// the control channel.
	RequestSpawnWorker
	// RequestCreateClosure asks the sandbox to allocate an executable
	// libffi closure that, when called by sandboxed code, re-enters the
	// host via this channel as StateCallback with ClosureCallbackID.
	RequestCreateClosure
)

// Type is the closed set of scalar type tags a call or callback
// signature may use for its return value and each argument.
type Type int32

const (
	TypeVoid Type = iota
	TypeUint8
	TypeSint8
	TypeUint16
	TypeSint16
	TypeUint32
	TypeSint32
	TypeUint64
	TypeSint64
	TypeFloat
	TypeDouble
	TypePointer
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeUint8:
		return "uint8"
	case TypeSint8:
		return "sint8"
	case TypeUint16:
		return "uint16"
	case TypeSint16:
		return "sint16"
	case TypeUint32:
		return "uint32"
	case TypeSint32:
		return "sint32"
	case TypeUint64:
		return "uint64"
	case TypeSint64:
		return "sint64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypePointer:
		return "pointer"
	default:
		return fmt.Sprintf("type(%d)", int32(t))
	}
}

// Size returns the number of bytes t occupies in ArgStorage/ResultStorage.
func (t Type) Size() int {
	switch t {
	case TypeVoid:
		return 0
	case TypeUint8, TypeSint8:
		return 1
	case TypeUint16, TypeSint16:
		return 2
	case TypeUint32, TypeSint32, TypeFloat:
		return 4
	case TypeUint64, TypeSint64, TypeDouble, TypePointer:
		return 8
	default:
		return 0
	}
}

// Layout limits. These bound the fixed-size arrays in Channel and are
// part of the wire contract: both host and sandbox binaries are built
// against this same package, so a size change requires rebuilding both.
const (
	MaxArgs        = 8
	MaxSymbolName  = 256
	ArgStorageSize = 1024
	ResultStorage  = 32
	MemStorageSize = 4096
	MaxClosures    = 64
)

// Channel is the shared-memory struct exchanged between one host caller
// and one sandbox worker. Every field is a fixed-width scalar or fixed-
// size array so the same byte layout is valid whether it's read as this
// Go struct or as raw bytes copied through the arg/result/mem storage
// arrays.
//
// A Channel is only ever accessed through a *Channel obtained from
// [Map] or [Create]; the zero value is not a usable channel because it
// isn't backed by shared memory.
type Channel struct {
	state atomic.Int32

	// SandboxAddr is the address at which the sandbox process has this
	// same Channel mapped. The sandbox writes it once, right after
	// mapping the channel; the host waits for it to become non-zero and
	// uses it to turn addresses inside this mapping (e.g. MemStorage)
	// into addresses the sandbox can dereference.
	SandboxAddr uint64

	RequestType RequestType

	// RequestCall fields.
	FuncAddr uint64
	NArgs    int32
	RetType  Type
	ArgTypes [MaxArgs]Type
	// Args holds byte offsets into ArgStorage, one per argument.
	Args [MaxArgs]uint64

	// RequestDlsym fields.
	SymbolName [MaxSymbolName]byte
	SymbolAddr uint64

	// RequestRecvFD fields.
	ReceivedFD int32

	// RequestSpawnWorker fields.
	WorkerSHMFD int32

	// RequestCreateClosure fields.
	ClosureCallbackID int32
	ClosureNArgs      int32
	ClosureRetType    Type
	ClosureArgTypes   [MaxArgs]Type
	ClosureAddr       uint64

	// StateCallback field: which registered callback the sandbox is
	// invoking.
	CallbackID int32

	ArgStorage    [ArgStorageSize]byte
	ResultStorage [ResultStorage]byte
	MemStorage    [MemStorageSize]byte
}

// State loads the channel's state word.
func (c *Channel) State() State {
	return State(c.state.Load())
}

// storeState stores value into the channel's state word without
// waking anyone. Package wait's SetState wraps this with the futex
// wake that turns a store into a visible state transition; code
// outside package wait should call wait.SetState, not this method
// directly, or the peer may never be woken.
func (c *Channel) storeState(value State) {
	c.state.Store(int32(value))
}

// WaitAddr exposes the address of the channel's state word for the
// futex-based primitives in package wait. Only package wait has a
// legitimate reason to take this address.
func (c *Channel) WaitAddr() *int32 {
	return (*int32)(unsafe.Pointer(&c.state))
}

// StoreState performs the raw store half of a state transition,
// without waking anyone. Package wait uses this internally as one
// half of SetState. It is also safe to call directly for transitions
// where the peer cannot be parked waiting on this exact word -- most
// notably, returning a channel to StateIdle after consuming a
// response, since nothing ever futex-waits for StateIdle itself.
// Reaching for wait.SetState instead is never wrong, just occasionally
// unnecessary.
func (c *Channel) StoreState(value State) {
	c.storeState(value)
}

// SetSymbolName copies name into SymbolName. If name doesn't fit
// including the NUL terminator, it returns an error and leaves
// SymbolName unchanged.
func (c *Channel) SetSymbolName(name string) error {
	if len(name)+1 > MaxSymbolName {
		return fmt.Errorf("channel: symbol name %q exceeds %d bytes", name, MaxSymbolName-1)
	}
	clear(c.SymbolName[:])
	copy(c.SymbolName[:], name)
	return nil
}

// SymbolNameString returns SymbolName as a Go string, stopping at the
// first NUL byte.
func (c *Channel) SymbolNameString() string {
	n := 0
	for n < len(c.SymbolName) && c.SymbolName[n] != 0 {
		n++
	}
	return string(c.SymbolName[:n])
}

// Size is the mmap length required to back one Channel.
const Size = int(unsafe.Sizeof(Channel{}))

// Create allocates a new anonymous shared-memory region sized for one
// Channel, backed by memfd_create so it can be passed to another
// process by file descriptor, and maps it into this process. The
// returned file descriptor should be duplicated (or passed as-is, if
// this process is about to exec) to the peer process, which maps the
// same region with [Map].
func Create(name string) (ch *Channel, fd int, err error) {
	memfd, err := unix.MemfdCreate(name, 0)
	if err != nil {
		return nil, -1, fmt.Errorf("channel: memfd_create: %w", err)
	}

	if err := unix.Ftruncate(memfd, int64(Size)); err != nil {
		unix.Close(memfd)
		return nil, -1, fmt.Errorf("channel: ftruncate: %w", err)
	}

	ch, err = mapFD(memfd)
	if err != nil {
		unix.Close(memfd)
		return nil, -1, err
	}

	return ch, memfd, nil
}

// Map maps an existing channel-sized shared-memory file descriptor
// (typically received from the peer process, e.g. as an inherited fd
// or over SCM_RIGHTS) into this process's address space.
func Map(fd int) (*Channel, error) {
	return mapFD(fd)
}

func mapFD(fd int) (*Channel, error) {
	data, err := unix.Mmap(fd, 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("channel: mmap: %w", err)
	}
	if len(data) < Size {
		unix.Munmap(data)
		return nil, fmt.Errorf("channel: mapped region too small: %d < %d", len(data), Size)
	}
	return (*Channel)(unsafe.Pointer(&data[0])), nil
}

// Unmap releases the memory backing ch. ch must not be used after
// calling Unmap.
func Unmap(ch *Channel) error {
	data := unsafe.Slice((*byte)(unsafe.Pointer(ch)), Size)
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("channel: munmap: %w", err)
	}
	return nil
}

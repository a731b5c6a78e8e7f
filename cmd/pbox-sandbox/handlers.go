// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/ffi"
)

// handleDlsym resolves ch.SymbolName against the global symbol table
// and publishes the result to ch.SymbolAddr.
func handleDlsym(ch *channel.Channel) {
	ch.SymbolAddr = uint64(ffi.Dlsym(ch.SymbolNameString()))
}

// handleRecvFD receives one file descriptor over the process-wide
// fd-passing socket via SCM_RIGHTS.
func handleRecvFD(ch *channel.Channel) {
	fd, err := recvFD(sockFD)
	if err != nil {
		ch.ReceivedFD = -1
		return
	}
	ch.ReceivedFD = int32(fd)
}

func recvFD(sock int) (int, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	_, oobn, _, _, err := unix.Recvmsg(sock, buf, oob, 0)
	if err != nil {
		return -1, err
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil || len(cmsgs) == 0 {
		return -1, unix.EINVAL
	}
	fds, err := unix.ParseUnixRights(&cmsgs[0])
	if err != nil || len(fds) == 0 {
		return -1, unix.EINVAL
	}
	return fds[0], nil
}

// handleCall unpacks a RequestCall's arguments out of ch.ArgStorage,
// bounds-checking every offset (the host is a trusted peer in
// practice, but the wire protocol validates both directions
// symmetrically, matching the original's shared do_ffi_call/
// dispatch_callback bounds discipline), invokes the requested function
// through libffi, and writes the raw result into ch.ResultStorage.
func handleCall(ch *channel.Channel, logger *slog.Logger) {
	n := int(ch.NArgs)
	if n < 0 || n > channel.MaxArgs {
		logger.Error("host violated call protocol: bad arg count", "nargs", n)
		os.Exit(1)
	}

	argTypes := make([]channel.Type, n)
	argPtrs := make([]unsafe.Pointer, n)
	for i := 0; i < n; i++ {
		t := ch.ArgTypes[i]
		size := uint64(t.Size())
		offset := ch.Args[i]
		if offset >= uint64(channel.ArgStorageSize) || offset+size > uint64(channel.ArgStorageSize) {
			logger.Error("host violated call protocol: argument offset out of range", "index", i)
			os.Exit(1)
		}
		argTypes[i] = t
		argPtrs[i] = unsafe.Pointer(&ch.ArgStorage[offset])
	}

	cif, err := ffi.PrepCIF(ch.RetType, argTypes)
	if err != nil {
		logger.Error("preparing call interface", "error", err)
		return
	}

	var retPtr unsafe.Pointer
	if ch.RetType != channel.TypeVoid {
		retPtr = unsafe.Pointer(&ch.ResultStorage[0])
	}

	cif.Call(unsafe.Pointer(uintptr(ch.FuncAddr)), retPtr, argPtrs)
}

// handleCreateClosure allocates a new libffi closure for the signature
// ch describes and appends it to closures, so its lifetime is tied to
// the owning dispatch loop and it is freed when that loop exits.
func handleCreateClosure(ch *channel.Channel, closures *[]*ffi.Closure, logger *slog.Logger) {
	if len(*closures) >= channel.MaxClosures {
		logger.Warn("closure registry full, refusing to create another", "limit", channel.MaxClosures)
		ch.ClosureAddr = 0
		return
	}

	n := int(ch.ClosureNArgs)
	if n < 0 || n > channel.MaxArgs {
		logger.Error("host violated closure protocol: bad arg count", "nargs", n)
		ch.ClosureAddr = 0
		return
	}

	argTypes := make([]channel.Type, n)
	copy(argTypes, ch.ClosureArgTypes[:n])
	retType := ch.ClosureRetType
	callbackID := ch.ClosureCallbackID

	cif, err := ffi.PrepCIF(retType, argTypes)
	if err != nil {
		logger.Error("preparing closure call interface", "error", err)
		ch.ClosureAddr = 0
		return
	}

	closure, err := ffi.NewClosure(cif, callbackUpcall(ch, callbackID, retType, argTypes))
	if err != nil {
		logger.Error("allocating closure", "error", err)
		ch.ClosureAddr = 0
		return
	}

	*closures = append(*closures, closure)
	ch.ClosureAddr = uint64(uintptr(closure.CodeAddr))
}

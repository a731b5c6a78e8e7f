// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

// Integration tests exercise a real forked sandbox process end to end:
// a genuine CallRaw round trip, an fd translation round trip, a
// callback upcall that re-enters the same channel mid-call, and the
// concurrent-caller thread isolation spec.md's testable properties
// describe. They require the pbox-sandbox binary this package's
// Sandbox.Create forks, which needs cgo, libffi, and (on the seccomp
// path) a kernel that allows unprivileged filters -- unavailable in
// some CI sandboxes, so every test here skips rather than fails when
// the binary can't be resolved or the process fails to start.

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/ffi"
)

// sandboxBinary resolves the pbox-sandbox executable the same way the
// teacher's integration suite resolves the bureau CLI binary: an
// explicit env var first (a prebuilt artifact from a build step this
// test itself cannot perform), then a well-known relative build
// output, skipping the test with build instructions if neither exists.
func sandboxBinary(t *testing.T) string {
	t.Helper()

	if path := os.Getenv("PBOX_SANDBOX_BINARY"); path != "" {
		if _, err := os.Stat(path); err != nil {
			t.Skipf("PBOX_SANDBOX_BINARY=%s does not exist: %v", path, err)
		}
		return path
	}

	candidate := filepath.Join("..", "cmd", "pbox-sandbox", "pbox-sandbox")
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}

	t.Skip("pbox-sandbox binary not available: build it with " +
		"'go build -o cmd/pbox-sandbox/pbox-sandbox ./cmd/pbox-sandbox' " +
		"or set PBOX_SANDBOX_BINARY, then re-run")
	return ""
}

// newTestSandbox creates a Sandbox against the resolved pbox-sandbox
// binary, skipping (not failing) the test if the process can't be
// forked or fails to answer its startup dlsym probes -- both symptoms
// of a binary built without the seccomp/libffi support this package
// assumes, rather than of a bug this test is meant to catch.
func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()

	binary := sandboxBinary(t)
	sb, err := Create(Config{BinaryPath: binary})
	if err != nil {
		t.Skipf("creating sandbox from %s: %v", binary, err)
	}
	t.Cleanup(func() { sb.Destroy() })
	return sb
}

// withTimeout runs fn in a goroutine and fails the test if it hasn't
// returned within d. A caller.mu held across a callback dispatch (the
// bug review comment fixed in waitForResponse) manifests as exactly
// this: the call never returns, rather than returning an error.
func withTimeout(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("timed out after %s -- likely deadlock", d)
	}
}

// TestCallRoundTrip exercises a real Dlsym + CallRaw round trip
// against the forked sandbox process: resolving and invoking libc's
// getpid should return the sandbox's own pid, distinct from this test
// process's.
func TestCallRoundTrip(t *testing.T) {
	sb := newTestSandbox(t)

	caller, err := sb.NewCaller()
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	defer caller.Close()

	getpidAddr, err := caller.Dlsym("getpid")
	if err != nil {
		t.Fatalf("Dlsym(getpid): %v", err)
	}
	if getpidAddr == 0 {
		t.Fatal("Dlsym(getpid) returned 0")
	}

	var result uint64
	withTimeout(t, 5*time.Second, func() {
		err = sb.CallRaw(caller, getpidAddr, channel.TypeSint32, nil, nil, &result)
	})
	if err != nil {
		t.Fatalf("CallRaw(getpid): %v", err)
	}

	sandboxPID := int32(result)
	if sandboxPID <= 0 {
		t.Fatalf("getpid() in sandbox returned %d, want a positive pid", sandboxPID)
	}
	if int(sandboxPID) == os.Getpid() {
		t.Fatalf("sandbox getpid() == test process pid %d, sandbox is not a separate process", sandboxPID)
	}
	if int(sandboxPID) != sb.PID() {
		t.Fatalf("sandbox getpid() = %d, want Sandbox.PID() = %d", sandboxPID, sb.PID())
	}
}

// TestFDTranslationRoundTrip exercises SendFD/CloseFD against a real
// sandbox: a host fd sent once is cached, and closing the resulting
// sandbox fd forgets the cache entry so a later SendFD of the same
// host fd would transfer it again rather than return a stale mapping.
func TestFDTranslationRoundTrip(t *testing.T) {
	sb := newTestSandbox(t)

	caller, err := sb.NewCaller()
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	defer caller.Close()

	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	defer f.Close()
	hostFD := int(f.Fd())

	var sandboxFD int
	withTimeout(t, 5*time.Second, func() {
		sandboxFD, err = sb.SendFD(caller, hostFD)
	})
	if err != nil {
		t.Fatalf("SendFD: %v", err)
	}
	if sandboxFD < 0 {
		t.Fatalf("SendFD returned invalid fd %d", sandboxFD)
	}

	cached, ok := sb.fds.lookup(hostFD)
	if !ok || cached != sandboxFD {
		t.Fatalf("fd cache after SendFD: lookup(%d) = (%d, %v), want (%d, true)", hostFD, cached, ok, sandboxFD)
	}

	second, err := sb.SendFD(caller, hostFD)
	if err != nil {
		t.Fatalf("second SendFD: %v", err)
	}
	if second != sandboxFD {
		t.Fatalf("second SendFD(%d) = %d, want cached %d", hostFD, second, sandboxFD)
	}

	if err := sb.CloseFD(caller, sandboxFD); err != nil {
		t.Fatalf("CloseFD(%d): %v", sandboxFD, err)
	}
	if _, ok := sb.fds.lookup(hostFD); ok {
		t.Fatalf("fd cache still maps host fd %d to sandbox fd %d after CloseFD", hostFD, sandboxFD)
	}
}

// TestCallbackReentrancy registers a real host function -- libc's abs,
// resolved on the host side the same way sandbox.go resolves its own
// symbol table -- as a callback, then calls the resulting closure
// address exactly as it would call any other sandboxed function. The
// sandbox's ffi closure trampoline (cmd/pbox-sandbox's
// callbackUpcall) answers by raising StateCallback on the very same
// channel the outer CallRaw is still waiting on, which is precisely
// the "same channel reused across the nesting" case review comment 2
// fixed: before that fix this call self-deadlocked on caller.mu
// instead of ever returning.
func TestCallbackReentrancy(t *testing.T) {
	sb := newTestSandbox(t)

	caller, err := sb.NewCaller()
	if err != nil {
		t.Fatalf("NewCaller: %v", err)
	}
	defer caller.Close()

	absAddr := ffi.Dlsym("abs")
	if absAddr == 0 {
		t.Fatal("host process cannot resolve abs via dlsym")
	}

	closureAddr, err := sb.RegisterCallback(caller, unsafe.Pointer(absAddr),
		channel.TypeSint32, []channel.Type{channel.TypeSint32})
	if err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}
	if closureAddr == 0 {
		t.Fatal("RegisterCallback returned a nil closure address")
	}

	var result uint64
	withTimeout(t, 5*time.Second, func() {
		err = sb.CallRaw(caller, closureAddr, channel.TypeSint32,
			[]channel.Type{channel.TypeSint32}, []uint64{uint64(uint32(int32(-7)))}, &result)
	})
	if err != nil {
		t.Fatalf("CallRaw(closure): %v", err)
	}

	if got := int32(result); got != 7 {
		t.Fatalf("abs(-7) via callback closure = %d, want 7", got)
	}
}

// TestThreadIsolation proves the property spec.md §8 names: one
// channel blocked in a long-running call does not stall a concurrent
// caller's channel, because each Caller owns its own worker thread in
// the sandbox rather than sharing one. It is the Go-side equivalent of
// the blocking-call scenario the C original's thread pool was built
// to survive.
func TestThreadIsolation(t *testing.T) {
	sb := newTestSandbox(t)

	blocked, err := sb.NewCaller()
	if err != nil {
		t.Fatalf("NewCaller (blocked): %v", err)
	}
	defer blocked.Close()

	free, err := sb.NewCaller()
	if err != nil {
		t.Fatalf("NewCaller (free): %v", err)
	}
	defer free.Close()

	usleepAddr, err := blocked.Dlsym("usleep")
	if err != nil || usleepAddr == 0 {
		t.Fatalf("Dlsym(usleep): %v", err)
	}
	getpidAddr, err := free.Dlsym("getpid")
	if err != nil || getpidAddr == 0 {
		t.Fatalf("Dlsym(getpid): %v", err)
	}

	const sleepMicros = 500_000 // 500ms, long enough to dwarf a getpid round trip

	var wg sync.WaitGroup
	wg.Add(1)
	sleepDone := make(chan time.Duration, 1)
	go func() {
		defer wg.Done()
		start := time.Now()
		if err := sb.CallRaw(blocked, usleepAddr, channel.TypeSint32,
			[]channel.Type{channel.TypeUint32}, []uint64{uint64(uint32(sleepMicros))}, nil); err != nil {
			t.Errorf("CallRaw(usleep): %v", err)
		}
		sleepDone <- time.Since(start)
	}()

	// Give the blocked channel's usleep a head start so the free
	// channel's call genuinely races a call already in flight, not
	// one that hasn't been issued yet.
	time.Sleep(50 * time.Millisecond)

	var result uint64
	start := time.Now()
	withTimeout(t, 2*time.Second, func() {
		err = sb.CallRaw(free, getpidAddr, channel.TypeSint32, nil, nil, &result)
	})
	freeElapsed := time.Since(start)
	if err != nil {
		t.Fatalf("CallRaw(getpid) on free channel: %v", err)
	}
	if int32(result) <= 0 {
		t.Fatalf("getpid() on free channel returned %d", int32(result))
	}

	if freeElapsed >= 250*time.Millisecond {
		t.Fatalf("getpid() on the free channel took %s while another channel slept %dus; "+
			"channels appear to share a worker thread", freeElapsed, sleepMicros)
	}

	wg.Wait()
	sleepElapsed := <-sleepDone
	if sleepElapsed < 400*time.Millisecond {
		t.Fatalf("usleep(%d) returned after only %s", sleepMicros, sleepElapsed)
	}
}

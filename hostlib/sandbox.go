// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/wait"
)

// Config configures a Sandbox at creation time. Unlike lib/config's
// YAML-driven pbox-hostd settings, this is the functional-options-style
// surface SPEC_FULL.md's Design Notes reserve for the core packages
// (channel, hostlib, pbox): a Go program embedding this module
// constructs one of these directly rather than going through a config
// file.
type Config struct {
	// BinaryPath is the sandbox executable to fork and exec. Resolved
	// via exec.LookPath if it contains no path separator.
	BinaryPath string

	// Logger receives structured lifecycle events (sandbox spawned,
	// exited, killed by signal). Defaults to slog.Default() if nil.
	Logger *slog.Logger

	// IdentityArenaSize is the size, in bytes, of each Caller's lazily
	// allocated identity-mapped memory arena.
	IdentityArenaSize int64

	// LockIdentityMemory mlocks every identity-mapped region on the host
	// side and marks it MADV_DONTDUMP, the same protection lib/secret's
	// Buffer gives credential material, for programs that pass sensitive
	// pointer-referenced data across the identity-mapped arena. Off by
	// default: mlock over the default 16MiB arena exceeds the
	// RLIMIT_MEMLOCK most unprivileged processes run under. Callers that
	// enable this must size IdentityArenaSize to fit their own memlock
	// limit.
	LockIdentityMemory bool
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.IdentityArenaSize <= 0 {
		c.IdentityArenaSize = 16 << 20
	}
	return c
}

// Symbols caches the handful of libc entry points every Sandbox needs
// to implement its own memory and fd operations against the sandboxed
// process.
type symbols struct {
	malloc, calloc, realloc, free uint64
	mmap, munmap                  uint64
	memcpy                        uint64
	close                         uint64
}

// Sandbox is a running sandboxed process plus the host-side state
// needed to talk to it: the control channel, one worker channel per
// live Caller, the fd translation table, and the callback registry.
//
// A Sandbox is safe for concurrent use by multiple goroutines, each
// holding its own *Caller.
type Sandbox struct {
	cfg Config

	cmd *exec.Cmd
	pid int

	sockFD int // host end of the SCM_RIGHTS socketpair

	control    *channel.Channel
	controlFD  int
	controlMu  sync.Mutex // serializes control-channel requests (dlsym, spawn-worker)

	sym symbols

	callersMu sync.Mutex
	callers   map[*Caller]struct{}

	fds fdTable

	callbacksMu sync.Mutex
	callbacks   []hostCallback

	destroying atomic.Bool
	dead       atomic.Bool

	waitDone chan struct{}
}

// Create forks the sandbox binary named by cfg.BinaryPath, establishes
// the control channel and fd-passing socket over it, and resolves the
// small set of libc symbols the rest of this package's memory and fd
// operations depend on.
func Create(cfg Config) (*Sandbox, error) {
	cfg = cfg.withDefaults()
	if cfg.BinaryPath == "" {
		return nil, errors.New("hostlib: Config.BinaryPath is required")
	}

	binaryPath, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("hostlib: resolving sandbox binary: %w", err)
	}

	ch, shmFD, err := channel.Create("pbox_control")
	if err != nil {
		return nil, fmt.Errorf("hostlib: creating control channel: %w", err)
	}

	sockFDs, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		channel.Unmap(ch)
		unix.Close(shmFD)
		return nil, fmt.Errorf("hostlib: creating fd-passing socketpair: %w", err)
	}
	hostSockFD, sandboxSockFD := sockFDs[0], sockFDs[1]

	// os/exec's ExtraFiles dup2s these into the child at fd 3, 4 -- the
	// parent's own copies of the descriptors stay open independently
	// and are not consumed by Start. shmFD is kept open on the host
	// side for the life of the Sandbox (mirroring the original's
	// control_shm_fd, closed only in Destroy); sandboxSockFD is the
	// child's end of the fd-passing socket and is closed here since
	// only hostSockFD is used on this side.
	shmFile := os.NewFile(uintptr(shmFD), "pbox-control-shm")
	sockFile := os.NewFile(uintptr(sandboxSockFD), "pbox-control-sock")

	cmd := exec.Command(binaryPath, strconv.Itoa(3), strconv.Itoa(4))
	cmd.ExtraFiles = []*os.File{shmFile, sockFile}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		channel.Unmap(ch)
		unix.Close(shmFD)
		unix.Close(hostSockFD)
		unix.Close(sandboxSockFD)
		return nil, fmt.Errorf("hostlib: starting sandbox process: %w", err)
	}
	sockFile.Close() // the child has its own dup'd copy now

	sb := &Sandbox{
		cfg:       cfg,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		sockFD:    hostSockFD,
		control:   ch,
		controlFD: shmFD,
		callers:   make(map[*Caller]struct{}),
		waitDone:  make(chan struct{}),
	}
	sb.fds.init()

	go sb.watch()

	sb.sym.malloc = sb.dlsymControl("malloc")
	sb.sym.calloc = sb.dlsymControl("calloc")
	sb.sym.realloc = sb.dlsymControl("realloc")
	sb.sym.free = sb.dlsymControl("free")
	sb.sym.mmap = sb.dlsymControl("mmap")
	sb.sym.munmap = sb.dlsymControl("munmap")
	sb.sym.memcpy = sb.dlsymControl("memcpy")
	sb.sym.close = sb.dlsymControl("close")

	cfg.Logger.Info("sandbox created", "pid", sb.pid, "binary", binaryPath)
	return sb, nil
}

// watch reaps the sandbox process and marks the control channel dead
// once it exits, mirroring watcher_thread_fn's role in the original:
// it is the single place that turns "the child process is gone" into
// "every blocked channel operation observes StateDead".
func (sb *Sandbox) watch() {
	state, err := sb.cmd.Process.Wait()
	defer close(sb.waitDone)

	if !sb.destroying.Load() {
		switch {
		case err != nil:
			sb.cfg.Logger.Warn("sandbox wait failed", "pid", sb.pid, "error", err)
		case state.Sys().(syscall.WaitStatus).Signal() == syscall.SIGSYS:
			sb.cfg.Logger.Error("sandbox killed by seccomp violation", "pid", sb.pid)
		case state.ExitCode() != 0:
			sb.cfg.Logger.Warn("sandbox exited non-zero", "pid", sb.pid, "exit_code", state.ExitCode())
		}
	}

	sb.dead.Store(true)
	wait.SetState(sb.control, channel.StateDead)

	sb.callersMu.Lock()
	for c := range sb.callers {
		wait.SetState(c.channel, channel.StateDead)
	}
	sb.callersMu.Unlock()
}

// PID returns the sandbox process's process ID.
func (sb *Sandbox) PID() int { return sb.pid }

// Alive reports whether the sandbox process is still running.
func (sb *Sandbox) Alive() bool { return !sb.dead.Load() }

// Destroy kills the sandbox process and releases every resource this
// Sandbox holds: the control channel, every live Caller's worker
// channel and identity arena, and the fd-passing socket.
func (sb *Sandbox) Destroy() error {
	sb.destroying.Store(true)
	if err := sb.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		sb.cfg.Logger.Warn("killing sandbox process", "pid", sb.pid, "error", err)
	}
	<-sb.waitDone

	sb.callersMu.Lock()
	for c := range sb.callers {
		c.closeLocked()
	}
	sb.callers = nil
	sb.callersMu.Unlock()

	channel.Unmap(sb.control)
	unix.Close(sb.controlFD)
	unix.Close(sb.sockFD)

	sb.cfg.Logger.Info("sandbox destroyed", "pid", sb.pid)
	return nil
}

// dlsymControl resolves symbol using the control channel directly,
// bypassing per-Caller channel creation. Used only during Create for
// the fixed set of libc symbols every Sandbox needs before any Caller
// exists.
func (sb *Sandbox) dlsymControl(symbol string) uint64 {
	sb.controlMu.Lock()
	defer sb.controlMu.Unlock()

	ch := sb.control
	ch.RequestType = channel.RequestDlsym
	if err := ch.SetSymbolName(symbol); err != nil {
		sb.cfg.Logger.Warn("symbol name too long", "symbol", symbol)
		return 0
	}

	wait.SetState(ch, channel.StateRequest)
	wait.For(ch, channel.StateResponse, func(s channel.State) bool { return s == channel.StateDead })
	ch.StoreState(channel.StateIdle)

	return ch.SymbolAddr
}

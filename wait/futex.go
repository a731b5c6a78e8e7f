// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wait

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
)

// Linux futex operation codes (linux/futex.h). golang.org/x/sys/unix
// does not expose a typed futex(2) wrapper, so the raw syscall numbers
// are used directly, exactly as the original implementation's
// pbox_futex_wait/pbox_futex_wake do.
const (
	futexWait = 0
	futexWake = 1
)

// SpinIterations is the number of times For busy-polls the state word
// before falling back to a blocking futex wait. The original keeps this
// at zero (PBOX_SPIN_ITERATIONS): at pbox's call rate, spinning never
// paid for the CPU it burned in the original's own benchmarks, so this
// mirrors that measured decision rather than reintroducing spinning
// speculatively.
const SpinIterations = 0

// SetState publishes newState to ch and wakes exactly one waiter parked
// in For on this channel. Writing the atomic word directly (as
// channel.Channel.StoreState does on its own) wakes nobody, so any
// transition a peer may be futex-waiting for must go through SetState;
// StoreState alone is enough only where nothing waits for the new
// value, such as returning a channel to StateIdle.
func SetState(ch *channel.Channel, newState channel.State) {
	ch.StoreState(newState)
	futexWake1(ch.WaitAddr())
}

// For blocks the calling goroutine until ch's state equals want, or
// until abandon reports true (checked once, before the first wait,
// and again on every futex wake -- used to give up if the caller
// already knows the peer is dead and wants to avoid one more wait
// syscall). abandon may be nil, in which case For blocks
// unconditionally until want is observed.
//
// For returns the state actually observed, which is want unless
// abandon caused an early return -- in that case it returns whatever
// state was last read, which the caller should re-check.
func For(ch *channel.Channel, want channel.State, abandon func(channel.State) bool) channel.State {
	for i := 0; i < SpinIterations; i++ {
		if current := ch.State(); current == want {
			return current
		}
	}

	for {
		current := ch.State()
		if current == want {
			return current
		}
		if abandon != nil && abandon(current) {
			return current
		}
		futexWait1(ch.WaitAddr(), int32(current))
	}
}

func futexWait1(addr *int32, expected int32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWait),
		uintptr(expected),
		0, 0, 0,
	)
	// Every returned errno (EAGAIN because the value already changed,
	// EINTR from a signal, or a plain successful wake) leads to the
	// same next step: re-check the state word in the caller's loop.
	// Only a true spurious wake with an unchanged, still-wanted state
	// costs an extra loop iteration.
}

func futexWake1(addr *int32) {
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(futexWake),
		1, // wake at most one waiter; each Channel has exactly one
		0, 0, 0,
	)
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wait implements the futex-backed hybrid spin/block primitive
// that turns a [channel.Channel]'s atomic state word into a blocking
// wait: SetState publishes a new state and wakes anyone parked on it,
// and For blocks the calling goroutine until the state word reaches a
// wanted value or the wait is abandoned because the peer died.
//
// This is a direct port of the original implementation's
// pbox_wait_for_state/pbox_set_state pair: a short busy-spin (disabled
// by default, matching the original's PBOX_SPIN_ITERATIONS=0 -- spinning
// burns a full CPU per blocked caller for no measured benefit at this
// call rate) followed by a raw SYS_FUTEX wait, using the same atomic
// int32 as both the value compared and the futex address.
//
// Since a goroutine blocked in a futex wait is a blocked OS thread (the
// Go runtime cannot preempt a syscall), every call into this package
// blocks one M for the duration of the wait. Callers that expect many
// concurrent blocked calls should be prepared for the Go scheduler to
// spin up additional OS threads, exactly as pthread_create would for
// the original's blocked worker threads.
package wait

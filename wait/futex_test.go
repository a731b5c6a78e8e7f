// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wait

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/pbox/channel"
)

func newTestChannel(t *testing.T) *channel.Channel {
	t.Helper()
	ch, fd, err := channel.Create("pbox-wait-test")
	if err != nil {
		t.Fatalf("channel.Create: %v", err)
	}
	t.Cleanup(func() {
		channel.Unmap(ch)
		unix.Close(fd)
	})
	return ch
}

func TestForReturnsImmediatelyWhenAlreadySet(t *testing.T) {
	ch := newTestChannel(t)
	ch.StoreState(channel.StateResponse)

	done := make(chan channel.State, 1)
	go func() { done <- For(ch, channel.StateResponse, nil) }()

	select {
	case got := <-done:
		if got != channel.StateResponse {
			t.Errorf("For returned %v, want %v", got, channel.StateResponse)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("For did not return for an already-satisfied state")
	}
}

func TestSetStateWakesWaiter(t *testing.T) {
	ch := newTestChannel(t)
	ch.StoreState(channel.StateIdle)

	done := make(chan channel.State, 1)
	go func() { done <- For(ch, channel.StateRequest, nil) }()

	// Give the waiter goroutine time to enter the futex wait before
	// publishing the state it's waiting for.
	time.Sleep(50 * time.Millisecond)
	SetState(ch, channel.StateRequest)

	select {
	case got := <-done:
		if got != channel.StateRequest {
			t.Errorf("For returned %v, want %v", got, channel.StateRequest)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SetState did not wake the blocked waiter")
	}
}

func TestForAbandonsOnDead(t *testing.T) {
	ch := newTestChannel(t)
	ch.StoreState(channel.StateIdle)

	done := make(chan channel.State, 1)
	go func() {
		done <- For(ch, channel.StateResponse, func(s channel.State) bool {
			return s == channel.StateDead
		})
	}()

	time.Sleep(50 * time.Millisecond)
	SetState(ch, channel.StateDead)

	select {
	case got := <-done:
		if got != channel.StateDead {
			t.Errorf("For returned %v, want %v", got, channel.StateDead)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("For did not abandon on StateDead")
	}
}

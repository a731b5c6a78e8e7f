// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import "github.com/bureau-foundation/pbox/channel"

// Stats summarizes a Sandbox's live resource usage, for the admin
// introspection surface (cmd/pbox-hostd's "stats" action).
type Stats struct {
	PID           int
	Alive         bool
	CallerCount   int
	CallbackCount int
}

// Stats reports sb's current resource usage.
func (sb *Sandbox) Stats() Stats {
	sb.callersMu.Lock()
	callerCount := len(sb.callers)
	sb.callersMu.Unlock()

	sb.callbacksMu.Lock()
	callbackCount := len(sb.callbacks)
	sb.callbacksMu.Unlock()

	return Stats{
		PID:           sb.pid,
		Alive:         sb.Alive(),
		CallerCount:   callerCount,
		CallbackCount: callbackCount,
	}
}

// ChannelInfo describes one live worker channel, for the admin
// introspection surface's "list-channels" action.
type ChannelInfo struct {
	State channel.State
}

// ListChannels reports the current state of every live worker channel.
func (sb *Sandbox) ListChannels() []ChannelInfo {
	sb.callersMu.Lock()
	defer sb.callersMu.Unlock()

	infos := make([]ChannelInfo, 0, len(sb.callers))
	for c := range sb.callers {
		infos = append(infos, ChannelInfo{State: c.channel.State()})
	}
	return infos
}

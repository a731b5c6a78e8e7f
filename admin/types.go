// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin defines and serves the debug/introspection RPC surface
// cmd/pbox-hostd exposes on a Unix socket: a CBOR request/response
// protocol for inspecting a running Sandbox's channels and resource
// usage from the outside, without going through the pbox API itself.
package admin

import "github.com/bureau-foundation/pbox/lib/codec"

// Actions this surface understands.
const (
	ActionStats        = "stats"
	ActionListChannels = "list-channels"
)

// Request is the CBOR-encoded request every connection sends exactly
// once: {action: "stats"} or {action: "list-channels"}. Unknown
// actions receive an error response.
type Request struct {
	Action string `cbor:"action"`
}

// Response is the wire-format envelope for every reply: either
// {ok: true, data: <action-specific payload>} or {ok: false, error: "..."}.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// StatsResponse is the ActionStats payload.
type StatsResponse struct {
	PID           int  `cbor:"pid"`
	Alive         bool `cbor:"alive"`
	CallerCount   int  `cbor:"caller_count"`
	CallbackCount int  `cbor:"callback_count"`
}

// ChannelStatus describes one live worker channel.
type ChannelStatus struct {
	State string `cbor:"state"`
}

// ListChannelsResponse is the ActionListChannels payload.
type ListChannelsResponse struct {
	Channels []ChannelStatus `cbor:"channels"`
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import "github.com/bureau-foundation/pbox/hostlib"

// Stats summarizes a Sandbox's live resource usage.
type Stats = hostlib.Stats

// ChannelInfo describes one live worker channel.
type ChannelInfo = hostlib.ChannelInfo

// Stats reports s's current resource usage, for callers building an
// introspection or admin surface on top of this package (see
// cmd/pbox-hostd).
func (s *Sandbox) Stats() Stats { return s.sb.Stats() }

// ListChannels reports the current state of every live worker channel.
func (s *Sandbox) ListChannels() []ChannelInfo { return s.sb.ListChannels() }

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// pbox's admin/introspection protocol.
//
// The host-sandbox call protocol itself is a fixed-layout shared-memory
// struct (see package channel); it never touches this codec. This
// package only serializes the debug surface that cmd/pbox-hostd exposes
// over its admin Unix socket -- ListChannels, Stats, and similar
// read-only queries -- so that surface can evolve without breaking the
// wire-compatible parts of the system.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. Same
// logical data always produces identical bytes, which keeps admin
// responses diffable across runs.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the admin socket):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Every admin message type uses a `cbor` struct tag; none of these
// types are also serialized as JSON, so there is no tag-precedence
// ambiguity to document.
package codec

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"github.com/bureau-foundation/pbox/channel"
	"github.com/bureau-foundation/pbox/hostlib"
)

// Type is the closed set of scalar type tags a Call or RegisterCallback
// signature may use. It is a re-export of channel.Type: the wire format
// and the public API share one enumeration on purpose, since a caller
// composing an ArgTypes slice for Call is describing exactly the tag
// that ends up on the wire.
type Type = channel.Type

const (
	TypeVoid    = channel.TypeVoid
	TypeUint8   = channel.TypeUint8
	TypeSint8   = channel.TypeSint8
	TypeUint16  = channel.TypeUint16
	TypeSint16  = channel.TypeSint16
	TypeUint32  = channel.TypeUint32
	TypeSint32  = channel.TypeSint32
	TypeUint64  = channel.TypeUint64
	TypeSint64  = channel.TypeSint64
	TypeFloat   = channel.TypeFloat
	TypeDouble  = channel.TypeDouble
	TypePointer = channel.TypePointer
)

// ErrDead is returned by any Sandbox or Caller operation performed
// after the sandboxed process has exited, whether from a clean exit,
// a signal, or a seccomp-policy kill. It is the same sentinel hostlib
// returns, re-exported so callers never need to import hostlib to
// check for it with errors.Is.
var ErrDead = hostlib.ErrDead

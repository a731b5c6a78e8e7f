// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"fmt"

	"github.com/bureau-foundation/pbox/channel"
)

// Call invokes the function at funcAddr inside the sandbox through
// caller's channel, marshalling args according to argTypes and, if ret
// is non-nil, unmarshalling the result into it according to retType.
func (s *Sandbox) Call(caller *Caller, funcAddr uintptr, retType Type, argTypes []Type, args []any, ret any) error {
	if len(args) != len(argTypes) {
		return fmt.Errorf("pbox: %d argument types but %d arguments", len(argTypes), len(args))
	}

	argValues := make([]uint64, len(args))
	for i, a := range args {
		v, err := marshalArg(argTypes[i], a)
		if err != nil {
			return fmt.Errorf("pbox: argument %d: %w", i, err)
		}
		argValues[i] = v
	}

	var raw uint64
	rawPtr := &raw
	if retType == channel.TypeVoid {
		rawPtr = nil
	}
	if err := s.sb.CallRaw(caller.c, uint64(funcAddr), retType, argTypes, argValues, rawPtr); err != nil {
		return err
	}
	if retType == channel.TypeVoid || ret == nil {
		return nil
	}
	return unmarshalRet(retType, raw, ret)
}

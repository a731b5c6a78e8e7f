// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"math"
	"testing"

	"github.com/bureau-foundation/pbox/channel"
)

func TestMarshalArgIntegerRoundtrip(t *testing.T) {
	v, err := marshalArg(channel.TypeUint32, uint32(0xdeadbeef))
	if err != nil {
		t.Fatalf("marshalArg: %v", err)
	}
	if v != 0xdeadbeef {
		t.Errorf("got %#x, want %#x", v, 0xdeadbeef)
	}
}

func TestMarshalArgFloat(t *testing.T) {
	v, err := marshalArg(channel.TypeFloat, float32(3.5))
	if err != nil {
		t.Fatalf("marshalArg: %v", err)
	}
	if got := math.Float32frombits(uint32(v)); got != 3.5 {
		t.Errorf("got %v, want 3.5", got)
	}
}

func TestMarshalArgDouble(t *testing.T) {
	v, err := marshalArg(channel.TypeDouble, 2.25)
	if err != nil {
		t.Fatalf("marshalArg: %v", err)
	}
	if got := math.Float64frombits(v); got != 2.25 {
		t.Errorf("got %v, want 2.25", got)
	}
}

func TestUnmarshalRetSignExtends(t *testing.T) {
	var got int32
	if err := unmarshalRet(channel.TypeSint8, 0xff, &got); err != nil {
		t.Fatalf("unmarshalRet: %v", err)
	}
	if got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}

func TestUnmarshalRetFloat(t *testing.T) {
	var got float64
	if err := unmarshalRet(channel.TypeDouble, math.Float64bits(1.5), &got); err != nil {
		t.Fatalf("unmarshalRet: %v", err)
	}
	if got != 1.5 {
		t.Errorf("got %v, want 1.5", got)
	}
}

func TestUnmarshalRetRejectsNonPointer(t *testing.T) {
	var got int
	if err := unmarshalRet(channel.TypeUint32, 1, got); err == nil {
		t.Fatal("expected error for non-pointer ret")
	}
}

func TestMarshalArgRejectsUnsupportedType(t *testing.T) {
	if _, err := marshalArg(channel.TypeUint32, "not a number"); err == nil {
		t.Fatal("expected error marshalling a string as an integer argument")
	}
}

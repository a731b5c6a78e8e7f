// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pbox

import (
	"fmt"
	"math"
	"reflect"

	"github.com/bureau-foundation/pbox/channel"
)

// marshalArg converts a Go value into the uint64 bit pattern hostlib's
// call layer packs into ArgStorage: the value itself for integer and
// pointer types, the IEEE-754 bit pattern for float/double.
func marshalArg(t channel.Type, v any) (uint64, error) {
	switch t {
	case channel.TypeFloat:
		f, err := toFloat64(v)
		if err != nil {
			return 0, err
		}
		return uint64(math.Float32bits(float32(f))), nil
	case channel.TypeDouble:
		f, err := toFloat64(v)
		if err != nil {
			return 0, err
		}
		return math.Float64bits(f), nil
	default:
		return toUint64(v)
	}
}

// unmarshalRet writes raw (a value of retType's width, as returned by
// hostlib's call layer) into ret, which must be a non-nil pointer to a
// Go type wide enough to hold retType.
func unmarshalRet(t channel.Type, raw uint64, ret any) error {
	if ret == nil {
		return nil
	}
	rv := reflect.ValueOf(ret)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("pbox: ret must be a non-nil pointer, got %T", ret)
	}
	elem := rv.Elem()

	switch t {
	case channel.TypeFloat:
		elem.SetFloat(float64(math.Float32frombits(uint32(raw))))
		return nil
	case channel.TypeDouble:
		elem.SetFloat(math.Float64frombits(raw))
		return nil
	}

	switch elem.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		elem.SetInt(signExtend(t, raw))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		elem.SetUint(raw)
	default:
		return fmt.Errorf("pbox: cannot store a %s result into %T", t, ret)
	}
	return nil
}

// signExtend interprets raw as a t-width two's-complement integer and
// sign-extends it to 64 bits, for the signed integer Type tags.
func signExtend(t channel.Type, raw uint64) int64 {
	switch t {
	case channel.TypeSint8:
		return int64(int8(raw))
	case channel.TypeSint16:
		return int64(int16(raw))
	case channel.TypeSint32:
		return int64(int32(raw))
	default:
		return int64(raw)
	}
}

// toUint64 extracts the bit pattern of any integer, uintptr, or
// pointer-shaped Go value, matching the widths channel.Type.Size
// allows.
func toUint64(v any) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Pointer, reflect.UnsafePointer:
		return uint64(rv.Pointer()), nil
	default:
		return 0, fmt.Errorf("pbox: cannot marshal %T as an integer or pointer argument", v)
	}
}

func toFloat64(v any) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	default:
		return 0, fmt.Errorf("pbox: cannot marshal %T as a floating-point argument", v)
	}
}

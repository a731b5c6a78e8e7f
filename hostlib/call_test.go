// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostlib

import "testing"

func TestPutGetUintRoundtrip(t *testing.T) {
	cases := []struct {
		n int
		v uint64
	}{
		{1, 0xab},
		{2, 0xabcd},
		{4, 0xdeadbeef},
		{8, 0x0123456789abcdef},
	}
	for _, c := range cases {
		buf := make([]byte, c.n)
		putUint(buf, c.v, c.n)
		got := getUint(buf)
		if got != c.v {
			t.Errorf("putUint/getUint roundtrip for n=%d: got %#x, want %#x", c.n, got, c.v)
		}
	}
}

func TestPutUintTruncates(t *testing.T) {
	buf := make([]byte, 1)
	putUint(buf, 0x1ff, 1)
	if got := getUint(buf); got != 0xff {
		t.Errorf("putUint truncation: got %#x, want %#x", got, 0xff)
	}
}

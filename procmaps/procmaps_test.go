// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procmaps

import (
	"os"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    Region
		wantOK  bool
		wantErr bool
	}{
		{
			line:   "7f1234500000-7f1234521000 r--p 00000000 08:01 123456 /lib/libc.so.6",
			want:   Region{Start: 0x7f1234500000, End: 0x7f1234521000},
			wantOK: true,
		},
		{
			line:   "00400000-00452000 r-xp 00000000 08:01 123 /usr/bin/example",
			want:   Region{Start: 0x400000, End: 0x452000},
			wantOK: true,
		},
		{
			line:   "",
			wantOK: false,
		},
		{
			line:   "not a maps line at all",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		got, ok, err := parseLine(tt.line)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			continue
		}
		if ok != tt.wantOK {
			t.Errorf("parseLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}

func TestOverlaps(t *testing.T) {
	regions := []Region{
		{Start: 0x1000, End: 0x2000},
		{Start: 0x5000, End: 0x6000},
	}

	cases := []struct {
		addr, length uintptr
		want         bool
	}{
		{0x1500, 0x100, true},   // inside first region
		{0x900, 0x200, false},   // entirely before first region
		{0xf00, 0x200, true},    // straddles start of first region
		{0x1f00, 0x200, true},   // straddles end of first region
		{0x2000, 0x1000, false}, // exactly between the two regions
		{0x6000, 0x1000, false}, // exactly after the last region
	}

	for _, tt := range cases {
		if got := overlaps(tt.addr, tt.length, regions); got != tt.want {
			t.Errorf("overlaps(%#x, %#x) = %v, want %v", tt.addr, tt.length, got, tt.want)
		}
	}
}

func TestAlignUp(t *testing.T) {
	cases := map[uintptr]uintptr{
		0:      0,
		1:      pageSize,
		4096:   4096,
		4097:   8192,
		100000: 102400,
	}
	for input, want := range cases {
		if got := alignUp(input); got != want {
			t.Errorf("alignUp(%d) = %d, want %d", input, got, want)
		}
	}
}

func TestRegionsSelf(t *testing.T) {
	regions, err := Regions(os.Getpid())
	if err != nil {
		t.Fatalf("Regions(self): %v", err)
	}
	if len(regions) == 0 {
		t.Fatal("expected at least one mapped region for the current process")
	}
	for i := 1; i < len(regions); i++ {
		if regions[i].Start < regions[i-1].Start {
			t.Errorf("regions not in ascending order at index %d: %+v then %+v", i, regions[i-1], regions[i])
		}
	}
}

func TestFindCommonFreeAddressSelf(t *testing.T) {
	pid := os.Getpid()
	addr, err := FindCommonFreeAddress(pid, pid, 4096)
	if err != nil {
		t.Fatalf("FindCommonFreeAddress: %v", err)
	}
	if addr == 0 {
		t.Fatal("expected nonzero address")
	}
	if addr%alignment != 0 {
		t.Errorf("address %#x is not 64KiB-aligned", addr)
	}

	regions, err := Regions(pid)
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if overlaps(addr, 4096, regions) {
		t.Errorf("chosen address %#x overlaps an existing mapping", addr)
	}
}

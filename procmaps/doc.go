// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package procmaps finds a virtual address range that is free in two
// separate processes simultaneously, by parsing each process's
// /proc/[pid]/maps and searching a fixed set of high-address candidate
// bases for a gap that avoids every mapped region on both sides.
//
// hostlib uses this as the fallback path for identity-mapped memory:
// the fast path asks the kernel to place a mapping and then asks the
// sandbox to map the same length at that address with MAP_FIXED_NOREPLACE,
// which usually succeeds because both processes tend to have similar
// address space layouts. When it doesn't -- ASLR put something else
// there in one process but not the other -- [FindCommonFreeAddress]
// does an explicit intersection search instead of retrying blindly.
package procmaps

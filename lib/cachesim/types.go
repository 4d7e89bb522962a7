// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cachesim implements the trace-driven page-buffer-cache
// replacement-policy engine: the frame table, ghost-list machinery,
// ARC parameter adaptation, and the nine interacting eviction
// policies that sit in front of a zoned-namespace device.
package cachesim

import (
	"fmt"
	"math"

	"zncachesim/lib/fmtutil"
)

const (
	// SectorSize is the device sector size, in bytes.
	SectorSize = 512
	// SectorsPerPage is the number of sectors that make up one buffer page.
	SectorsPerPage = 8
	// PageSize is the buffer page size, in bytes (4 KiB).
	PageSize = SectorSize * SectorsPerPage
)

// LBA is a logical block address, at SectorSize-byte granularity.
type LBA uint64

// Page converts an LBA to the PageID of the page that contains it.
func (lba LBA) Page() PageID {
	return PageID(lba / SectorsPerPage)
}

// PageID identifies a fixed-size page of the simulated address space.
type PageID uint64

// InvalidPage marks an empty buffer frame, or the absence of a page.
const InvalidPage = PageID(math.MaxUint64)

// String implements fmt.Stringer.
func (id PageID) String() string {
	return fmt.Sprintf("%v", id)
}

// Format implements fmt.Formatter, in the style of
// lib/btrfs/btrfsvol's typed-address Format methods: the invalid
// sentinel spells itself out rather than printing its bit pattern,
// and the default verb renders as hex.
func (id PageID) Format(f fmt.State, verb rune) {
	if id == InvalidPage {
		fmt.Fprintf(f, fmtutil.FmtStateString(f, 's'), "invalid")
		return
	}
	switch verb {
	case 'd':
		fmt.Fprintf(f, fmtutil.FmtStateString(f, 'd'), uint64(id))
	default:
		fmt.Fprintf(f, fmtutil.FmtStateString(f, 'x'), uint64(id))
	}
}

// Op is the kind of access an input record performs.
type Op uint8

const (
	Read Op = iota
	Write
)

// String implements fmt.Stringer.
func (op Op) String() string {
	switch op {
	case Read:
		return "R"
	case Write:
		return "W"
	default:
		return fmt.Sprintf("Op(%d)", uint8(op))
	}
}

// ListType tags which resident (or shadow) partition a frame
// currently belongs to. Its meaning is policy-dependent: FIFO and the
// two pure CLOCK policies only ever use ListT1 as a bare residency
// marker; LRU-ARC uses T1/T2; LFU-ARC uses T3/T4; the CLOCK-Pro
// variants use T1 or T3 exclusively depending on which ARC axis they
// generalize. See Engine's per-policy dispatch for the concrete
// interpretation in each case.
type ListType uint8

const (
	ListNone ListType = iota
	ListT1
	ListT2
	ListT3
	ListT4
)

// String implements fmt.Stringer.
func (lt ListType) String() string {
	switch lt {
	case ListNone:
		return "none"
	case ListT1:
		return "T1"
	case ListT2:
		return "T2"
	case ListT3:
		return "T3"
	case ListT4:
		return "T4"
	default:
		return fmt.Sprintf("ListType(%d)", uint8(lt))
	}
}

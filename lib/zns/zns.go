// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package zns implements the zoned-namespace write-pointer invariant
// checker that the buffer cache's dirty-page writeback path runs
// every physical write through.
package zns

import "fmt"

// PageID mirrors cachesim.PageID's numeric domain without importing
// the cache engine, keeping the write-pointer checker independent of
// buffer-replacement concerns; callers convert at the boundary.
type PageID uint64

// ZoneID identifies one zone of the namespace.
type ZoneID uint64

// String implements fmt.Stringer.
func (id ZoneID) String() string {
	return fmt.Sprintf("zone:%d", uint64(id))
}

// Outcome classifies how a single write-pointer check resolved.
type Outcome uint8

const (
	Sequential Outcome = iota
	NonSequential
	BoundaryClamped
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Sequential:
		return "sequential"
	case NonSequential:
		return "non-sequential"
	case BoundaryClamped:
		return "boundary-clamped"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

type constError string

func (e constError) Error() string { return string(e) }

// ErrZoneOutOfRange is wrapped by CheckWrite when a write targets a
// zone at or beyond MaxZones.
const ErrZoneOutOfRange = constError("zone id beyond configured maximum")

// MaxZones bounds the zone write-pointer table, matching the
// originating simulator's fixed-size zone array.
const MaxZones = 131072

// Table tracks the expected-next-page write pointer for every zone.
// A Table with ZoneSizePages == 0 disables ZNS checking entirely:
// CheckWrite always reports Sequential and never mutates state.
type Table struct {
	ZoneSizePages uint64

	pointers map[ZoneID]PageID
}

// NewTable constructs a Table for the given zone size in pages. A
// size of 0 disables ZNS checking.
func NewTable(zoneSizePages uint64) *Table {
	return &Table{
		ZoneSizePages: zoneSizePages,
		pointers:      make(map[ZoneID]PageID),
	}
}

func (t *Table) zoneOf(p PageID) ZoneID {
	return ZoneID(uint64(p) / t.ZoneSizePages)
}

func (t *Table) zoneStart(z ZoneID) PageID {
	return PageID(uint64(z) * t.ZoneSizePages)
}

func (t *Table) zoneEnd(z ZoneID) PageID {
	return PageID((uint64(z) + 1) * t.ZoneSizePages)
}

// WritePointer returns the current write pointer for zone z (its
// initial value, zoneStart(z), if nothing has been written there
// yet).
func (t *Table) WritePointer(z ZoneID) PageID {
	if wp, ok := t.pointers[z]; ok {
		return wp
	}
	return t.zoneStart(z)
}

// CheckWrite validates and, if sequential, records a device write of
// pagesWritten pages starting at page p.
//
// When the Table is disabled (ZoneSizePages == 0), CheckWrite always
// returns (Sequential, nil) without recording anything.
func (t *Table) CheckWrite(p PageID, pagesWritten uint64) (Outcome, error) {
	if t.ZoneSizePages == 0 {
		return Sequential, nil
	}

	zone := t.zoneOf(p)
	if zone >= MaxZones {
		return 0, fmt.Errorf("%w: %v", ErrZoneOutOfRange, zone)
	}

	expected := t.WritePointer(zone)
	if p != expected {
		// Simulator policy: preserve the event in the trace, but the
		// pointer does not move.
		return NonSequential, nil
	}

	end := t.zoneEnd(zone)
	newWP := PageID(uint64(p) + pagesWritten)
	outcome := Sequential
	if newWP > end {
		newWP = end
		outcome = BoundaryClamped
	}
	t.pointers[zone] = newWP
	return outcome, nil
}

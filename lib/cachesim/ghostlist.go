// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cachesim

import (
	"zncachesim/lib/containers"
	"zncachesim/lib/maps"
)

// GhostList is a bounded, MRU-ordered set of page IDs. It backs the
// engine's B1..B4 ghost (and, for the CLOCK-Pro policies, history/log)
// lists: O(1) Contains/Remove/AddMRU on top of a
// containers.LinkedList plus a page-ID index, the same shape as the
// recentGhost/frequentGhost/index triple that the pack's generic ARC
// cache builds around a single K/V cache's two ghost lists,
// generalized here to this engine's four.
type GhostList struct {
	cap   int
	list  containers.LinkedList[PageID]
	index map[PageID]*containers.LinkedListEntry[PageID]
}

// NewGhostList constructs a GhostList capped at the given capacity. A
// capacity of 0 means the list never retains anything.
func NewGhostList(capacity int) *GhostList {
	return &GhostList{
		cap:   capacity,
		index: make(map[PageID]*containers.LinkedListEntry[PageID], capacity),
	}
}

// Len returns the number of entries currently in the list.
func (g *GhostList) Len() int {
	return g.list.Len
}

// Contains reports whether pid is present.
func (g *GhostList) Contains(pid PageID) bool {
	_, ok := g.index[pid]
	return ok
}

// Remove deletes pid if present; it is a no-op otherwise.
func (g *GhostList) Remove(pid PageID) {
	entry, ok := g.index[pid]
	if !ok {
		return
	}
	g.list.Delete(entry)
	delete(g.index, pid)
}

// AddMRU removes any prior occurrence of pid, then appends it at the
// MRU end. If doing so would exceed the list's capacity, the LRU end
// is dropped until it fits.
func (g *GhostList) AddMRU(pid PageID) {
	g.Remove(pid)
	if g.cap <= 0 {
		return
	}
	entry := &containers.LinkedListEntry[PageID]{Value: pid}
	g.list.Store(entry)
	g.index[pid] = entry
	for g.list.Len > g.cap {
		oldest := g.list.Oldest
		g.list.Delete(oldest)
		delete(g.index, oldest.Value)
	}
}

// Pages returns the list's members in ascending page-ID order, for
// diagnostic dumps and invariant checks; it carries no ordering
// information about recency.
func (g *GhostList) Pages() []PageID {
	return maps.SortedKeys(g.index)
}

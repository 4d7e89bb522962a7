// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cachesim

// evictFIFO returns the index of the resident frame with the smallest
// LoadTime, or -1 if the table has no resident frames.
func (e *Engine) evictFIFO() int {
	best := -1
	for i := range e.frames.Frames {
		f := &e.frames.Frames[i]
		if f.PageID == InvalidPage {
			continue
		}
		if best == -1 || f.LoadTime < e.frames.Frames[best].LoadTime {
			best = i
		}
	}
	return best
}

// evictInternalLRU returns the index of the resident frame tagged
// target with the smallest LastAccessTime, or -1 if none match.
func (e *Engine) evictInternalLRU(target ListType) int {
	best := -1
	for i := range e.frames.Frames {
		f := &e.frames.Frames[i]
		if f.PageID == InvalidPage || f.ListType != target {
			continue
		}
		if best == -1 || f.LastAccessTime < e.frames.Frames[best].LastAccessTime {
			best = i
		}
	}
	return best
}

// evictInternalLFU returns the index of the resident frame tagged
// target with the smallest AccessCount, ties broken by the smaller
// LoadTime, or -1 if none match.
func (e *Engine) evictInternalLFU(target ListType) int {
	best := -1
	for i := range e.frames.Frames {
		f := &e.frames.Frames[i]
		if f.PageID == InvalidPage || f.ListType != target {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		b := &e.frames.Frames[best]
		if f.AccessCount < b.AccessCount ||
			(f.AccessCount == b.AccessCount && f.LoadTime < b.LoadTime) {
			best = i
		}
	}
	return best
}

// evictClock walks the frame table as a ring starting at *hand, for
// up to two full passes: on each resident frame matching the filter,
// a clear ref bit selects it immediately; otherwise the ref bit is
// cleared and the sweep continues. If no frame ever matches the
// filter, it falls back to FIFO. Otherwise, after two passes find
// nothing with a clear bit, a third force-evict pass ignores the ref
// bit and takes the first match. This bounds the sweep to at most
// 3*len(frames) steps and guarantees termination even when every
// matching frame starts with its ref bit set.
func (e *Engine) evictClock(hand *int, filterActive bool, target ListType) int {
	n := len(e.frames.Frames)
	if n == 0 {
		return -1
	}
	matches := func(f *Frame) bool {
		if f.PageID == InvalidPage {
			return false
		}
		if filterActive && f.ListType != target {
			return false
		}
		return true
	}

	anyMatch := false
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < n; i++ {
			idx := *hand
			f := &e.frames.Frames[idx]
			*hand = (*hand + 1) % n
			if !matches(f) {
				continue
			}
			anyMatch = true
			if !f.RefBit {
				return idx
			}
			f.RefBit = false
		}
	}
	if !anyMatch {
		return e.evictFIFO()
	}
	for i := 0; i < n; i++ {
		idx := *hand
		f := &e.frames.Frames[idx]
		*hand = (*hand + 1) % n
		if matches(f) {
			return idx
		}
	}
	// Unreachable if anyMatch was true, but fall back rather than panic.
	return e.evictFIFO()
}

// Copyright (C) 2026  The zncachesim Authors
//
// SPDX-License-Identifier: GPL-2.0-or-later

package cachesim

import (
	"context"
	"fmt"

	"github.com/datawire/dlib/dlog"

	"zncachesim/lib/iolog"
	"zncachesim/lib/zns"
)

// Config are the startup parameters accepted by NewEngine.
type Config struct {
	// Frames is the fixed buffer frame count, N.
	Frames int
	// InitialPolicy is the replacement policy in effect from the
	// first access.
	InitialPolicy ReplacementPolicy
	// ZoneSizePages is the ZNS zone size in pages; 0 disables ZNS
	// write-pointer checking.
	ZoneSizePages uint64
	// Device is the device name recorded in Summary; it plays no
	// role in the engine's own logic.
	Device string
	// WorkloadPath is the trace file path recorded in Summary.
	WorkloadPath string
	// Sink receives emitted device I/O events. A nil Sink silently
	// discards them, which is useful for invariant-only tests.
	Sink iolog.Sink
}

// Engine is the single-threaded owner of all mutable simulator state:
// the frame table, ghost lists, ARC parameters, zone write-pointer
// table, and the device I/O sink. Every exported method processes one
// input record to completion before returning, per the spec's
// sequential execution model; there is no internal concurrency to
// guard.
type Engine struct {
	cfg Config

	frames FrameTable
	b1, b2, b3, b4 *GhostList

	policy ReplacementPolicy
	p, q   int
	t1, t2, t3, t4 int

	clockHand, pHand, qHand int
	currentTime             int64

	zns  *zns.Table
	sink iolog.Sink

	hits, misses uint64
}

// NewEngine validates cfg and constructs a ready-to-use Engine with
// an empty buffer and the initial policy's ghost/ARC state.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Frames < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrameCount, cfg.Frames)
	}

	e := &Engine{
		cfg:    cfg,
		frames: NewFrameTable(cfg.Frames),
		b1:     NewGhostList(cfg.Frames),
		b2:     NewGhostList(cfg.Frames),
		b3:     NewGhostList(cfg.Frames),
		b4:     NewGhostList(cfg.Frames),
		policy: cfg.InitialPolicy,
		zns:    zns.NewTable(cfg.ZoneSizePages),
		sink:   cfg.Sink,
	}
	e.initialTarget(cfg.Frames, cfg.InitialPolicy)
	return e, nil
}

func (e *Engine) initialTarget(n int, policy ReplacementPolicy) {
	switch policy {
	case ClockT1:
		e.p = n
	case ClockT3:
		e.q = n
	case ClockProT1:
		e.p = n / 2
	case ClockProT3:
		e.q = n / 2
	}
}

// Policy returns the currently active replacement policy.
func (e *Engine) Policy() ReplacementPolicy { return e.policy }

// Hits returns the number of access records that hit so far.
func (e *Engine) Hits() uint64 { return e.hits }

// Misses returns the number of access records that missed so far.
func (e *Engine) Misses() uint64 { return e.misses }

// P returns the current ARC target size for the T1 partition.
func (e *Engine) P() int { return e.p }

// Q returns the current ARC target size for the T3 partition.
func (e *Engine) Q() int { return e.q }

// Frames returns the current contents of the buffer frame table, for
// diagnostic dumps; callers must not mutate the returned slice.
func (e *Engine) Frames() []Frame { return e.frames.Frames }

// GhostLists returns the engine's four ghost lists (B1..B4), for
// diagnostic dumps and invariant checks. Which ones are active
// depends on the current policy; an inactive list is simply empty.
func (e *Engine) GhostLists() (b1, b2, b3, b4 *GhostList) {
	return e.b1, e.b2, e.b3, e.b4
}

// Access processes one access record, returning whether it hit. All
// evictions, ghost-list updates, ARC adaptation, and emitted device
// I/O happen synchronously before Access returns.
func (e *Engine) Access(ctx context.Context, lba LBA, op Op) (bool, error) {
	pid := lba.Page()
	if idx := e.frames.Find(pid); idx >= 0 {
		e.recordHit(idx, op)
		e.hits++
		return true, nil
	}
	e.misses++
	if err := e.handleMiss(ctx, pid, op); err != nil {
		return false, err
	}
	return false, nil
}

// recordHit implements the hit path of §4.4: common bookkeeping plus
// the per-policy state transition.
func (e *Engine) recordHit(idx int, op Op) {
	e.currentTime++
	f := &e.frames.Frames[idx]
	f.LastAccessTime = e.currentTime
	f.touch()
	if op == Write {
		f.Dirty = true
	}

	switch e.policy {
	case FIFO:
		// no further state change
	case ClockT1, ClockT3, ClockProT1, ClockProT3:
		f.RefBit = true
	case LRUARC:
		if f.ListType == ListT1 {
			f.ListType = ListT2
			e.t1--
			e.t2++
		}
	case LFUARC:
		if f.ListType == ListT3 {
			f.ListType = ListT4
			e.t3--
			e.t4++
		}
	case LRU:
		if f.RefListType == ListT1 {
			f.RefListType = ListT2
		}
	case LFU:
		if f.RefListType == ListT3 {
			f.RefListType = ListT4
		}
	}
}

// handleMiss implements §4.5: ARC adaptation, eviction if necessary
// (including writeback of a dirty victim), the write-allocate read,
// and installation of the new page.
func (e *Engine) handleMiss(ctx context.Context, pid PageID, op Op) error {
	e.currentTime++

	// Captured before Step A mutates the ghost lists, since the
	// eviction decision for LRU-ARC/LFU-ARC depends on whether the
	// incoming page had been in the frequency ghost list.
	wasInB2 := e.policy == LRUARC && e.b2.Contains(pid)
	wasInB4 := e.policy == LFUARC && e.b4.Contains(pid)

	listType, refListType := e.stepA(pid)

	if e.frames.EmptySlot() < 0 {
		victim := e.selectVictim(wasInB2, wasInB4)
		if victim < 0 {
			dlog.Warnf(ctx, "no eviction candidate found for policy %v, falling back to FIFO", e.policy)
			victim = e.evictFIFO()
		}
		if victim < 0 {
			return fmt.Errorf("cachesim: empty buffer with nothing to evict")
		}
		if err := e.evict(ctx, victim); err != nil {
			return err
		}
	}

	// The read of the missed page follows any victim writeback, so a
	// dirty victim's write precedes it in the device trace.
	if err := e.emitRead(pid); err != nil {
		return err
	}

	idx := e.frames.EmptySlot()
	*e.frameAt(idx) = Frame{
		PageID:         pid,
		LoadTime:       e.currentTime,
		LastAccessTime: e.currentTime,
		AccessCount:    1,
		Dirty:          op == Write,
		RefBit:         e.usesClockRefBit(),
		ListType:       listType,
		RefListType:    refListType,
	}
	e.bumpResidentCount(listType, 1)

	switch e.policy {
	case ClockProT1:
		e.b2.AddMRU(pid) // log list, deliberately overlapping the resident set
	case ClockProT3:
		e.b4.AddMRU(pid)
	}

	return nil
}

func (e *Engine) frameAt(idx int) *Frame { return &e.frames.Frames[idx] }

func (e *Engine) usesClockRefBit() bool {
	switch e.policy {
	case ClockT1, ClockT3, ClockProT1, ClockProT3:
		return true
	default:
		return false
	}
}

func (e *Engine) bumpResidentCount(lt ListType, delta int) {
	switch lt {
	case ListT1:
		e.t1 += delta
	case ListT2:
		e.t2 += delta
	case ListT3:
		e.t3 += delta
	case ListT4:
		e.t4 += delta
	}
}

// stepA implements §4.5 Step A: ARC parameter adaptation and the
// target-partition decision for the incoming page.
func (e *Engine) stepA(pid PageID) (listType, refListType ListType) {
	switch e.policy {
	case FIFO, ClockT1, ClockT3:
		return ListT1, ListNone
	case LRU:
		shadow := e.arcStepA(pid, e.b1, e.b2, &e.p, ListT1, ListT2)
		return ListT1, shadow
	case LRUARC:
		target := e.arcStepA(pid, e.b1, e.b2, &e.p, ListT1, ListT2)
		return target, ListNone
	case LFU:
		shadow := e.arcStepA(pid, e.b3, e.b4, &e.q, ListT3, ListT4)
		return ListT3, shadow
	case LFUARC:
		target := e.arcStepA(pid, e.b3, e.b4, &e.q, ListT3, ListT4)
		return target, ListNone
	case ClockProT1:
		return e.clockProStepA(pid, e.t1, e.b4, &e.p, ListT1), ListNone
	case ClockProT3:
		return e.clockProStepA(pid, e.t3, e.b2, &e.q, ListT3), ListNone
	default:
		return ListT1, ListNone
	}
}

// arcStepA is the ARC ghost-hit adaptation rule shared by LRU/LRU-ARC
// (against B1/B2, adapting p) and LFU/LFU-ARC (against B3/B4,
// adapting q): a hit against the recency ghost list grows the target
// partition, a hit against the frequency ghost list shrinks it.
func (e *Engine) arcStepA(pid PageID, bRecency, bFrequency *GhostList, target *int, t1Tag, t2Tag ListType) ListType {
	n := len(e.frames.Frames)
	switch {
	case bRecency.Contains(pid):
		delta := max(1, bFrequency.Len()/bRecency.Len())
		*target = min(n, *target+delta)
		bRecency.Remove(pid)
		return t2Tag
	case bFrequency.Contains(pid):
		delta := max(1, bRecency.Len()/bFrequency.Len())
		*target = max(0, *target-delta)
		bFrequency.Remove(pid)
		return t2Tag
	default:
		return t1Tag
	}
}

// clockProStepA is the log/history-driven adaptation rule for the two
// CLOCK-Pro variants: a hit against the single auxiliary list grows
// the corresponding target, weighted by the ratio of the resident
// partition's size to the auxiliary list's size (falling back to the
// buffer size when the resident partition is still empty); a miss
// shrinks the target by the symmetric ratio. residentSize is the
// caller's t1/t3 count for the partition being adapted, taken before
// this call mutates anything.
func (e *Engine) clockProStepA(pid PageID, residentSize int, aux *GhostList, target *int, tag ListType) ListType {
	n := len(e.frames.Frames)
	auxSize := aux.Len()
	if aux.Contains(pid) {
		delta := 1
		if residentSize > 0 && auxSize > 0 {
			delta = max(1, residentSize/auxSize)
		}
		if residentSize == 0 && auxSize > 0 && n > 0 {
			delta = max(1, n/auxSize)
		}
		*target = min(n, *target+max(1, delta))
		aux.Remove(pid)
	} else {
		delta := 1
		if residentSize > 0 && auxSize > 0 {
			delta = max(1, auxSize/residentSize)
		}
		if auxSize == 0 && residentSize > 0 && n > 0 {
			delta = max(1, n/residentSize)
		}
		*target = max(0, *target-max(1, delta))
	}
	return tag
}

// selectVictim implements §4.5 Step B's per-policy victim selection.
func (e *Engine) selectVictim(wasInB2, wasInB4 bool) int {
	switch e.policy {
	case FIFO:
		return e.evictFIFO()
	case LRU:
		return e.evictInternalLRU(ListT1)
	case LFU:
		return e.evictInternalLFU(ListT3)
	case LRUARC:
		// When the incoming page was a B2 hit landing exactly on
		// target, T2 gives up a page first (falling back to T1 only
		// if T2 is empty); otherwise T1 gives up a page first
		// (falling back to T2 only if T1 is empty).
		if wasInB2 && e.t1 == e.p {
			if e.t2 > 0 {
				return e.evictInternalLRU(ListT2)
			}
			if e.t1 > 0 {
				return e.evictInternalLRU(ListT1)
			}
			return -1
		}
		if e.t1 > 0 {
			return e.evictInternalLRU(ListT1)
		}
		if e.t2 > 0 {
			return e.evictInternalLRU(ListT2)
		}
		return -1
	case LFUARC:
		// T3 (frequency-resident) is selected by least access count;
		// T4 (recency-resident) is selected by least recent access,
		// matching the asymmetric pair of internal evictors used for
		// the two partitions.
		if wasInB4 && e.t3 == e.q {
			if e.t4 > 0 {
				return e.evictInternalLRU(ListT4)
			}
			if e.t3 > 0 {
				return e.evictInternalLFU(ListT3)
			}
			return -1
		}
		if e.t3 > 0 {
			return e.evictInternalLFU(ListT3)
		}
		if e.t4 > 0 {
			return e.evictInternalLRU(ListT4)
		}
		return -1
	case ClockT1, ClockT3:
		return e.evictClock(&e.clockHand, false, ListNone)
	case ClockProT1:
		if e.t1 >= e.p && e.t1 > 0 {
			if v := e.evictClock(&e.pHand, true, ListT1); v >= 0 {
				return v
			}
		}
		return e.evictClock(&e.pHand, false, ListNone)
	case ClockProT3:
		if e.t3 >= e.q && e.t3 > 0 {
			if v := e.evictClock(&e.qHand, true, ListT3); v >= 0 {
				return v
			}
		}
		return e.evictClock(&e.qHand, false, ListNone)
	default:
		return -1
	}
}

// evict implements §4.5 Steps C and D: writeback of a dirty victim
// and ghost-list bookkeeping, then frees the frame.
func (e *Engine) evict(ctx context.Context, idx int) error {
	f := e.frameAt(idx)
	victimPID := f.PageID
	victimList := f.ListType
	victimShadow := f.RefListType

	if f.Dirty {
		if err := e.emitWrite(ctx, victimPID); err != nil {
			return err
		}
		f.Dirty = false
	}

	switch e.policy {
	case LRU:
		e.pushGhost(victimShadow, victimPID)
	case LRUARC:
		e.pushGhost(victimList, victimPID)
	case LFU:
		e.pushGhost(victimShadow, victimPID)
	case LFUARC:
		e.pushGhost(victimList, victimPID)
	case ClockProT1:
		e.b4.AddMRU(victimPID) // history
		e.b2.AddMRU(victimPID) // log
	case ClockProT3:
		e.b2.AddMRU(victimPID) // history
		e.b4.AddMRU(victimPID) // log
	case FIFO, ClockT1, ClockT3:
		// no ghost bookkeeping
	}

	e.bumpResidentCount(victimList, -1)
	*f = Frame{PageID: InvalidPage}
	return nil
}

func (e *Engine) pushGhost(lt ListType, pid PageID) {
	switch lt {
	case ListT1:
		e.b1.AddMRU(pid)
	case ListT2:
		e.b2.AddMRU(pid)
	case ListT3:
		e.b3.AddMRU(pid)
	case ListT4:
		e.b4.AddMRU(pid)
	}
}

func (e *Engine) emitRead(pid PageID) error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Read(uint64(pid)*PageSize, PageSize)
}

func (e *Engine) emitWrite(ctx context.Context, pid PageID) error {
	outcome, err := e.zns.CheckWrite(zns.PageID(pid), 1)
	if err != nil {
		dlog.Warnf(ctx, "zns: %v, skipping write for page %v", err, pid)
		return nil
	}
	switch outcome {
	case zns.NonSequential:
		dlog.Warnf(ctx, "zns: non-sequential write to page %v", pid)
	case zns.BoundaryClamped:
		dlog.Warnf(ctx, "zns: write to page %v crosses zone boundary, write pointer clamped", pid)
	}
	if e.sink == nil {
		return nil
	}
	return e.sink.Write(uint64(pid)*PageSize, PageSize)
}

// SwitchPolicy implements §4.6: the policy-switch protocol. Switching
// to the already-active policy is a no-op.
func (e *Engine) SwitchPolicy(ctx context.Context, newPolicy ReplacementPolicy) {
	if newPolicy == e.policy {
		return
	}
	old := e.policy
	carryOver := (old == LRU && newPolicy == LRUARC) || (old == LRUARC && newPolicy == LRU) ||
		(old == LFU && newPolicy == LFUARC) || (old == LFUARC && newPolicy == LFU)

	n := len(e.frames.Frames)
	if !carryOver {
		e.b1 = NewGhostList(n)
		e.b2 = NewGhostList(n)
		e.b3 = NewGhostList(n)
		e.b4 = NewGhostList(n)
		e.p = 0
		e.q = 0
	}

	e.initialTarget(n, newPolicy)

	e.policy = newPolicy
	e.relabelFrames(old, newPolicy, carryOver)
	e.clockHand, e.pHand, e.qHand = 0, 0, 0

	dlog.Debugf(ctx, "switched replacement policy %v -> %v", old, newPolicy)
}

// relabelFrames implements §4.6 Step 4: every resident frame's
// partition tags are rebuilt for the new policy, and t1..t4 are
// recomputed from the resulting labels.
func (e *Engine) relabelFrames(old, newPolicy ReplacementPolicy, carryOver bool) {
	e.t1, e.t2, e.t3, e.t4 = 0, 0, 0, 0
	useClockRefBit := e.usesClockRefBit()

	for i := range e.frames.Frames {
		f := &e.frames.Frames[i]
		if f.PageID == InvalidPage {
			continue
		}
		switch {
		case carryOver && old == LRU && newPolicy == LRUARC:
			f.ListType = f.RefListType
			f.RefListType = ListNone
		case carryOver && old == LRUARC && newPolicy == LRU:
			f.RefListType = f.ListType
			f.ListType = ListT1
		case carryOver && old == LFU && newPolicy == LFUARC:
			f.ListType = f.RefListType
			f.RefListType = ListNone
		case carryOver && old == LFUARC && newPolicy == LFU:
			f.RefListType = f.ListType
			f.ListType = ListT3
		default:
			switch newPolicy {
			case LRU:
				f.ListType = ListT1
				f.RefListType = ListT1
			case LFU:
				f.ListType = ListT3
				f.RefListType = ListT3
			case LRUARC:
				f.ListType = ListT1
				f.RefListType = ListNone
			case LFUARC:
				f.ListType = ListT3
				f.RefListType = ListNone
			case ClockProT3:
				f.ListType = ListT3
				f.RefListType = ListNone
			default: // FIFO, ClockT1, ClockT3, ClockProT1
				f.ListType = ListT1
				f.RefListType = ListNone
			}
		}
		f.RefBit = useClockRefBit
		e.bumpResidentCount(f.ListType, 1)
	}
}

// Shutdown implements §4.8: every remaining dirty frame is flushed,
// then the device I/O sink is closed.
func (e *Engine) Shutdown(ctx context.Context) error {
	for i := range e.frames.Frames {
		f := &e.frames.Frames[i]
		if f.PageID == InvalidPage || !f.Dirty {
			continue
		}
		if err := e.emitWrite(ctx, f.PageID); err != nil {
			return err
		}
		f.Dirty = false
	}
	if e.sink != nil {
		return e.sink.Close()
	}
	return nil
}

// Summary is the result report printed to standard output at
// shutdown.
type Summary struct {
	Policy        ReplacementPolicy
	BufferSize    int
	WorkloadPath  string
	ZoneSizePages uint64
	Device        string
	Accesses      uint64
	Hits          uint64
	Misses        uint64
	FinalP        int
	FinalQ        int
}

// Summary snapshots the engine's final run statistics.
func (e *Engine) Summary() Summary {
	return Summary{
		Policy:        e.policy,
		BufferSize:    len(e.frames.Frames),
		WorkloadPath:  e.cfg.WorkloadPath,
		ZoneSizePages: e.cfg.ZoneSizePages,
		Device:        e.cfg.Device,
		Accesses:      e.hits + e.misses,
		Hits:          e.hits,
		Misses:        e.misses,
		FinalP:        e.p,
		FinalQ:        e.q,
	}
}

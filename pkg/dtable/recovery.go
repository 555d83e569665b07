package dtable

import (
	"fmt"

	"github.com/calvinalkan/dynrecord/internal/layout"
)

// recover runs the crash-recovery protocol in order: finish any in-flight
// slot move, rebuild the in-memory derived state by walking the descriptor
// array once, pack Stored descriptors toward low indices, then compact the
// data area with CRC validation. It runs unconditionally on every Open,
// including against a cleanly closed file, because the protocol is
// designed to be a no-op in that case.
func (t *Table) recover() error {
	if err := t.finishMove(); err != nil {
		return err
	}

	if err := t.rebuildDerivedState(); err != nil {
		return err
	}

	if err := t.compactSlots(); err != nil {
		return err
	}

	t.compactData(compactWithValidation)

	return nil
}

// finishMove replays a pending two-phase move, or is a no-op against an
// already-Invalid pair. It is the first thing recovery does
// because the rest of recovery assumes no move is in flight.
func (t *Table) finishMove() error {
	src, dst := t.header.CompactedSrcIndex(), t.header.CompactedDstIndex()

	if src == layout.Invalid && dst == layout.Invalid {
		return nil
	}

	if src == layout.Invalid || dst == layout.Invalid {
		return fmt.Errorf("dtable: %w: move pair half-valid (src=%d dst=%d)", ErrCorrupt, src, dst)
	}

	if src >= t.maxRecordsOrStored() || dst >= t.maxRecordsOrStored() {
		return fmt.Errorf("dtable: %w: move pair out of range (src=%d dst=%d max=%d)",
			ErrCorrupt, src, dst, t.maxRecordsOrStored())
	}

	t.finishMoveTo(src, dst)
	t.header.ClearMovePair()

	return nil
}

// finishMoveTo performs the memcpy half of the two-phase move and rewires
// the data-list neighbours (not head/tail, which the caller fixes since
// only it knows whether src/dst sat at an endpoint). Idempotent: once the
// copy has happened src is Free, so a second call with the same src/dst
// finds src no longer Stored and leaves dst untouched.
func (t *Table) finishMoveTo(src, dst uint64) {
	srcDesc := t.descs.At(src)
	dstDesc := t.descs.At(dst)

	if srcDesc.State() != layout.StateStored {
		return
	}

	prev, next := srcDesc.PrevDataIndex(), srcDesc.NextDataIndex()

	dstDesc.CopyFrom(srcDesc)
	srcDesc.Reset()

	if prev != layout.Invalid {
		t.descs.At(prev).SetNextDataIndex(dst)
	}
	if next != layout.Invalid {
		t.descs.At(next).SetPrevDataIndex(dst)
	}
}

// rebuildDerivedState walks every descriptor below the current high-water
// mark once, classifying it into free_indices or the data-order list
// endpoints. An Allocated descriptor found here is an uncommitted
// allocation that did not survive the process that created it, so it is
// discarded (set Free) rather than kept.
func (t *Table) rebuildDerivedState() error {
	t.freeIndices = t.freeIndices[:0]
	t.headDataIdx = layout.Invalid
	t.tailDataIdx = layout.Invalid
	t.gapSpaceSize = 0

	hw := t.header.NextFreeRecordIndex()
	if hw > t.maxRecordsOrStored() {
		return fmt.Errorf("dtable: %w: next_free_record_index %d exceeds max_records %d",
			ErrCorrupt, hw, t.maxRecordsOrStored())
	}

	type liveEntry struct {
		index  uint64
		offset uint64
	}
	var live []liveEntry

	for i := uint64(0); i < hw; i++ {
		d := t.descs.At(i)
		switch d.State() {
		case layout.StateFree:
			t.freeIndices = append(t.freeIndices, i)
		case layout.StateAllocated:
			t.log.Warn("dtable: discarding uncommitted allocation found at open", "index", i)
			d.Reset()
			t.freeIndices = append(t.freeIndices, i)
		case layout.StateStored:
			live = append(live, liveEntry{index: i, offset: d.DataOffset()})
		default:
			return fmt.Errorf("dtable: %w: descriptor %d has invalid state %d", ErrCorrupt, i, d.State())
		}
	}

	// The on-disk prev/next pointers are untrusted bookkeeping left over
	// from before the crash; rebuild the list purely from ascending
	// data_offset, which invariant 3 requires it to match anyway.
	for i := 0; i+1 < len(live); i++ {
		minIdx := i
		for j := i + 1; j < len(live); j++ {
			if live[j].offset < live[minIdx].offset {
				minIdx = j
			}
		}
		live[i], live[minIdx] = live[minIdx], live[i]
	}

	prev := layout.Invalid
	for _, e := range live {
		d := t.descs.At(e.index)
		d.SetPrevDataIndex(prev)
		d.SetNextDataIndex(layout.Invalid)
		if prev != layout.Invalid {
			t.descs.At(prev).SetNextDataIndex(e.index)
		} else {
			t.headDataIdx = e.index
		}
		prev = e.index
	}
	t.tailDataIdx = prev

	return nil
}

// compactSlots packs Stored descriptors toward low indices using two
// cursors. Every non-trivial copy goes through the same
// prepare/finish move primitive the crash-recovery protocol uses, so a
// crash mid-pack is itself recoverable by a subsequent open.
func (t *Table) compactSlots() error {
	hw := t.header.NextFreeRecordIndex()

	read, write := uint64(0), uint64(0)

	for read < hw {
		d := t.descs.At(read)

		switch d.State() {
		case layout.StateFree:
			read++
		case layout.StateStored:
			if write != read {
				t.prepareMove(read, write)
				t.finishMoveTo(read, write)
				t.header.ClearMovePair()

				if t.headDataIdx == read {
					t.headDataIdx = write
				}
				if t.tailDataIdx == read {
					t.tailDataIdx = write
				}
			}
			read++
			write++
		default:
			return fmt.Errorf("dtable: %w: descriptor %d has unexpected state %d during slot compaction",
				ErrCorrupt, read, d.State())
		}
	}

	t.header.SetNextFreeRecordIndex(write)
	t.freeIndices = t.freeIndices[:0]

	return nil
}

// prepareMove implements the first phase of the two-phase crash-safe move:
// persist the (src, dst) pair before touching either descriptor, so a crash
// before the memcpy still lets the next open replay it from the same pair.
func (t *Table) prepareMove(src, dst uint64) {
	t.header.SetMovePair(src, dst)
}

package dtable

import "github.com/calvinalkan/dynrecord/internal/layout"

// dataListAppend adds index to the tail of the data-order list. Callers
// must ensure the descriptor's data_offset already places it after the
// current tail; append is the only mutation used by allocation, which
// always bumps the pointer, so this invariant holds by construction.
func (t *Table) dataListAppend(index uint64) {
	d := t.descs.At(index)
	d.SetPrevDataIndex(t.tailDataIdx)
	d.SetNextDataIndex(layout.Invalid)

	if t.tailDataIdx == layout.Invalid {
		t.headDataIdx = index
	} else {
		t.descs.At(t.tailDataIdx).SetNextDataIndex(index)
	}

	t.tailDataIdx = index
}

// dataListUnlink removes index from the data-order list and clears its own
// prev/next pointers. Used by DeleteRecord and by dropDescriptor during
// validating data compaction; the slot-compaction move rewires neighbours
// directly instead.
func (t *Table) dataListUnlink(index uint64) {
	d := t.descs.At(index)
	prev, next := d.PrevDataIndex(), d.NextDataIndex()

	if prev == layout.Invalid {
		t.headDataIdx = next
	} else {
		t.descs.At(prev).SetNextDataIndex(next)
	}

	if next == layout.Invalid {
		t.tailDataIdx = prev
	} else {
		t.descs.At(next).SetPrevDataIndex(prev)
	}

	d.SetPrevDataIndex(layout.Invalid)
	d.SetNextDataIndex(layout.Invalid)
}

// allocateData does bump-pointer allocation over the data area, compacting
// or growing first if the tail doesn't have room.
func (t *Table) allocateData(size uint64) (uint64, error) {
	need := size

	if t.header.NextDataOffset()+need > t.header.DataAreaSize() {
		t.tryCompactData(need)
	}

	if t.header.NextDataOffset()+need > t.header.DataAreaSize() {
		if err := t.expandDataArea(need); err != nil {
			return 0, err
		}
	}

	offset := t.header.NextDataOffset()
	t.header.SetNextDataOffset(offset + need)

	return offset, nil
}

// ForceCompact runs a data-area compaction pass unconditionally, bypassing
// the gap-threshold guard. Used by the `dtablectl compact` command to let
// an operator reclaim space immediately instead of waiting for the next
// allocation to trip the threshold.
func (t *Table) ForceCompact() {
	t.compactData(compactNoValidation)
}

// tryCompactData is the amortisation guard: only compact when the
// accumulated gap is both above the threshold (measured against the
// *initial* data area size taken from Options at Open, not the current
// data_area_size, and never updated while the table is open) and large
// enough to actually satisfy need.
func (t *Table) tryCompactData(need uint64) {
	threshold := t.initialDataAreaSize * t.gapThresholdPct / 100

	if t.gapSpaceSize <= threshold || t.gapSpaceSize < need {
		return
	}

	t.compactData(compactNoValidation)
}

type compactMode int

const (
	compactNoValidation compactMode = iota
	compactWithValidation
)

// compactData walks the data-order list from head, packing every live
// range toward offset 0 in list order. In with-validation mode (used only
// during open-time recovery) it recomputes each range's CRC before moving
// it and drops descriptors that fail.
func (t *Table) compactData(mode compactMode) {
	data := t.dataAreaBytes()

	var newOffset uint64
	cur := t.headDataIdx

	for cur != layout.Invalid {
		d := t.descs.At(cur)
		next := d.NextDataIndex()
		old := d.DataOffset()
		size := d.DataSize()

		if mode == compactWithValidation && d.State() == layout.StateStored {
			if layout.ChecksumCRC32C(data[old:old+size]) != d.CRC32() {
				t.log.Warn("dtable: dropping record with failed CRC during recovery",
					"index", cur, "offset", old, "size", size)
				t.dropDescriptor(cur)
				cur = next
				continue
			}
		}

		if old != newOffset {
			copy(data[newOffset:newOffset+size], data[old:old+size])
			d.SetDataOffset(newOffset)
		}

		newOffset += size
		cur = next
	}

	t.header.SetNextDataOffset(newOffset)
	t.gapSpaceSize = 0
}

// dropDescriptor unlinks a descriptor from the data list, discards it (Free)
// and returns its index to the slot free queue, without adjusting the
// high-water mark. Recovery runs slot compaction before this pass, so a
// dropped index stays queued as free until it is reused or a later Open
// packs the slots again.
func (t *Table) dropDescriptor(index uint64) {
	t.dataListUnlink(index)
	t.descs.At(index).Reset()
	t.freeIndices = append(t.freeIndices, index)
}

// expandDataArea doubles data_area_size until it can satisfy need, then
// resizes the mapping and remaps.
func (t *Table) expandDataArea(need uint64) error {
	size := t.header.DataAreaSize()
	if size == 0 {
		size = 1
	}

	for t.header.NextDataOffset()+need > size {
		size *= 2
	}

	newFileSize := int64(t.dataAreaOffset + size)
	if err := t.m.Resize(newFileSize); err != nil {
		return err
	}

	t.rebindViews()
	t.header.SetDataAreaSize(size)

	t.log.Info("dtable: grew data area", "path", t.path, "new_size", size)

	return nil
}

package dtable

import "github.com/calvinalkan/dynrecord/internal/layout"

// allocateSlot pops a free index below the high-water mark if one is
// queued, otherwise takes the high-water mark itself if capacity remains.
// Returns layout.Invalid if the table is full.
func (t *Table) allocateSlot() uint64 {
	if n := len(t.freeIndices); n > 0 {
		idx := t.freeIndices[n-1]
		t.freeIndices = t.freeIndices[:n-1]
		return idx
	}

	hw := t.header.NextFreeRecordIndex()
	if hw >= t.maxRecords {
		return layout.Invalid
	}

	t.header.SetNextFreeRecordIndex(hw + 1)

	return hw
}

// releaseSlot is the delete-time counterpart to allocateSlot: if index
// sits at the top of the high-water mark, shrink the mark (and keep
// shrinking through any now-exposed trailing free slots); otherwise push
// it onto the free queue.
func (t *Table) releaseSlot(index uint64) {
	hw := t.header.NextFreeRecordIndex()

	if index == hw-1 {
		hw--
		// Shrink further through any free slots newly exposed at the top,
		// so the high-water mark stays tight and freeIndices never holds
		// an index >= the mark.
		for hw > 0 {
			cand := hw - 1
			if !t.isQueuedFree(cand) {
				break
			}
			t.removeQueuedFree(cand)
			hw--
		}
		t.header.SetNextFreeRecordIndex(hw)
		return
	}

	t.freeIndices = append(t.freeIndices, index)
}

func (t *Table) isQueuedFree(index uint64) bool {
	for _, v := range t.freeIndices {
		if v == index {
			return true
		}
	}
	return false
}

func (t *Table) removeQueuedFree(index uint64) {
	for i, v := range t.freeIndices {
		if v == index {
			t.freeIndices = append(t.freeIndices[:i], t.freeIndices[i+1:]...)
			return
		}
	}
}

// countRecords returns next_free_record_index - |free_indices|.
func (t *Table) countRecords() uint64 {
	return t.header.NextFreeRecordIndex() - uint64(len(t.freeIndices))
}

package dtable

import (
	"iter"

	"github.com/calvinalkan/dynrecord/internal/layout"
)

// Invalid is the sentinel index returned by operations that cannot
// complete: table full, precondition violation. It is the same bit pattern
// as the on-disk Invalid sentinel.
const Invalid = layout.Invalid

// AllocRecord reserves size bytes of data-area space and a free descriptor
// slot, transitioning it to Allocated. It may
// compact or grow the data area as a side effect. Returns Invalid if size
// is 0 or the descriptor table is full.
func (t *Table) AllocRecord(size uint64) (uint64, error) {
	if err := t.checkOpen(); err != nil {
		return Invalid, err
	}

	if size == 0 {
		return Invalid, nil
	}

	index := t.allocateSlot()
	if index == Invalid {
		return Invalid, nil
	}

	offset, err := t.allocateData(size)
	if err != nil {
		t.releaseSlot(index)
		return Invalid, err
	}

	d := t.descs.At(index)
	d.SetDataOffset(offset)
	d.SetDataSize(size)
	d.SetCRC32(0)
	d.SetState(layout.StateAllocated)

	t.dataListAppend(index)

	return index, nil
}

// WriteRecordData writes the record's bytes. It may be called repeatedly
// while the descriptor is Allocated or Stored. Writing fewer bytes than the
// descriptor's current data_size releases the tail to gap_space_size and
// shrinks data_size in place; the freed tail is not removed from the data
// list, only accounted as a gap until the next data-area compaction.
func (t *Table) WriteRecordData(index uint64, data []byte) bool {
	if t.checkOpen() != nil {
		return false
	}

	if index >= t.maxRecords || len(data) == 0 {
		return false
	}

	d := t.descs.At(index)

	switch d.State() {
	case layout.StateAllocated, layout.StateStored:
	default:
		return false
	}

	size := uint64(len(data))
	if d.DataSize() < size {
		return false
	}

	dst := t.dataAreaBytes()
	off := d.DataOffset()
	copy(dst[off:off+size], data)
	d.SetCRC32(layout.ChecksumCRC32C(dst[off:off+size]))

	if size < d.DataSize() {
		t.gapSpaceSize += d.DataSize() - size
		d.SetDataSize(size)
	}

	return true
}

// CommitRecord transitions a descriptor Allocated → Stored. The bool return
// is kept for symmetry with the rest of the Table API even though Storage
// never branches on it beyond treating false as an overall failure.
func (t *Table) CommitRecord(index uint64) bool {
	if t.checkOpen() != nil || index >= t.maxRecords {
		return false
	}

	d := t.descs.At(index)
	if d.State() != layout.StateAllocated {
		return false
	}

	d.SetState(layout.StateStored)

	return true
}

// DeleteRecord transitions a descriptor Stored → Free, unlinking it from
// the data list and returning its slot. Returns false (a no-op) when the
// slot is not Stored, so deleting an already-deleted or never-used index
// is idempotent.
func (t *Table) DeleteRecord(index uint64) bool {
	if t.checkOpen() != nil || index >= t.maxRecords {
		return false
	}

	d := t.descs.At(index)
	if d.State() != layout.StateStored {
		return false
	}

	t.dataListUnlink(index)
	t.gapSpaceSize += d.DataSize()
	d.Reset()
	t.releaseSlot(index)

	return true
}

// GetRecord returns a byte-range view with no CRC check, nil if the slot
// is not Stored. The returned slice aliases the
// live mapping and is invalidated by any subsequent mutating call.
func (t *Table) GetRecord(index uint64) []byte {
	if t.checkOpen() != nil || index >= t.maxRecords {
		return nil
	}

	d := t.descs.At(index)
	if d.State() != layout.StateStored {
		return nil
	}

	data := t.dataAreaBytes()
	off, size := d.DataOffset(), d.DataSize()

	return data[off : off+size]
}

// GetRecordWithValidation behaves as GetRecord, but additionally returns
// nil if the stored CRC-32C does not match the current bytes.
func (t *Table) GetRecordWithValidation(index uint64) []byte {
	b := t.GetRecord(index)
	if b == nil {
		return nil
	}

	d := t.descs.At(index)
	if layout.ChecksumCRC32C(b) != d.CRC32() {
		return nil
	}

	return b
}

// Iterate returns a restartable sequence of (index, bytes) for every Stored
// descriptor in ascending index order, using the validated getter. Each
// call to Iterate produces a fresh sequence starting at index 0.
func (t *Table) Iterate() iter.Seq2[uint64, []byte] {
	return func(yield func(uint64, []byte) bool) {
		hw := t.header.NextFreeRecordIndex()
		for i := uint64(0); i < hw; i++ {
			b := t.GetRecordWithValidation(i)
			if b == nil {
				continue
			}
			if !yield(i, b) {
				return
			}
		}
	}
}

// Count returns next_free_record_index - |free_indices|, the number of
// descriptors currently Allocated or Stored.
func (t *Table) Count() uint64 {
	return t.countRecords()
}

// HeaderData returns a mutable view of the opaque user-header blob. Writes
// are durable only as far as the OS has flushed
// the mapping; the store makes no atomicity guarantee about them.
func (t *Table) HeaderData() []byte {
	return t.header.UserHeader()
}

// MaxRecords returns the descriptor array capacity adopted from the file
// (or from Options on first creation).
func (t *Table) MaxRecords() uint64 {
	return t.maxRecords
}

// Clear re-initialises the file to the empty state in place: it zeroes the
// whole mapping and stamps a fresh header, preserving MaxRecords and the
// user-header size but discarding every record and the user-header's
// current contents. The data area is reset to the initial data area size,
// or keeps its current size if it has grown beyond that, since the mapping
// is never shrunk.
func (t *Table) Clear() error {
	if err := t.checkOpen(); err != nil {
		return err
	}

	maxRecords := t.maxRecords
	headerSize := t.header.HeaderSize()
	dataAreaSize := t.opts.initialDataAreaSize()
	if cur := t.header.DataAreaSize(); cur > dataAreaSize {
		dataAreaSize = cur
	}
	dataAreaOffset := headerSize + maxRecords*layout.DescriptorSize

	if err := t.m.Resize(int64(dataAreaOffset + dataAreaSize)); err != nil {
		return err
	}

	b := t.m.Bytes()
	for i := range b {
		b[i] = 0
	}

	t.header = layout.NewHeader(b[:headerSize])
	t.header.SetVersion(layout.FormatVersion)
	t.header.SetHeaderSize(headerSize)
	t.header.SetRecordDescriptorSize(layout.DescriptorSize)
	t.header.SetDataAreaOffset(dataAreaOffset)
	t.header.SetDataAreaSize(dataAreaSize)
	t.header.SetNextDataOffset(0)
	t.header.SetNextFreeRecordIndex(0)
	t.header.SetMaxRecords(maxRecords)
	t.header.ClearMovePair()

	t.rebindViews()

	return t.recover()
}

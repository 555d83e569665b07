package layout

import "encoding/binary"

// State is a descriptor's lifecycle state.
type State uint32

const (
	StateFree      State = 0
	StateAllocated State = 1
	StateStored    State = 2
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateAllocated:
		return "allocated"
	case StateStored:
		return "stored"
	default:
		return "invalid"
	}
}

// Descriptor field offsets within one 48-byte entry. Field order follows the
// external format (data_offset, data_size, crc32, prev_data_index,
// next_data_index, state); the 4-byte gaps after crc32 and after state keep
// every u64 field 8-byte aligned.
const (
	descOffDataOffset     = 0
	descOffDataSize       = 8
	descOffCRC32          = 16
	descOffPrevDataIndex  = 24
	descOffNextDataIndex  = 32
	descOffState          = 40
	DescriptorSize        = 48
)

// Descriptor is a typed view over one descriptor-array entry.
type Descriptor struct {
	buf []byte
}

// NewDescriptor wraps buf, which must be exactly DescriptorSize bytes.
func NewDescriptor(buf []byte) Descriptor {
	return Descriptor{buf: buf}
}

func (d Descriptor) DataOffset() uint64 { return binary.LittleEndian.Uint64(d.buf[descOffDataOffset:]) }
func (d Descriptor) SetDataOffset(v uint64) {
	binary.LittleEndian.PutUint64(d.buf[descOffDataOffset:], v)
}

func (d Descriptor) DataSize() uint64     { return binary.LittleEndian.Uint64(d.buf[descOffDataSize:]) }
func (d Descriptor) SetDataSize(v uint64) { binary.LittleEndian.PutUint64(d.buf[descOffDataSize:], v) }

func (d Descriptor) CRC32() uint32     { return binary.LittleEndian.Uint32(d.buf[descOffCRC32:]) }
func (d Descriptor) SetCRC32(v uint32) { binary.LittleEndian.PutUint32(d.buf[descOffCRC32:], v) }

func (d Descriptor) PrevDataIndex() uint64 {
	return binary.LittleEndian.Uint64(d.buf[descOffPrevDataIndex:])
}
func (d Descriptor) SetPrevDataIndex(v uint64) {
	binary.LittleEndian.PutUint64(d.buf[descOffPrevDataIndex:], v)
}

func (d Descriptor) NextDataIndex() uint64 {
	return binary.LittleEndian.Uint64(d.buf[descOffNextDataIndex:])
}
func (d Descriptor) SetNextDataIndex(v uint64) {
	binary.LittleEndian.PutUint64(d.buf[descOffNextDataIndex:], v)
}

func (d Descriptor) State() State     { return State(binary.LittleEndian.Uint32(d.buf[descOffState:])) }
func (d Descriptor) SetState(s State) { binary.LittleEndian.PutUint32(d.buf[descOffState:], uint32(s)) }

// Reset zeroes a descriptor back to the Free state with no data range and no
// list linkage.
func (d Descriptor) Reset() {
	d.SetDataOffset(0)
	d.SetDataSize(0)
	d.SetCRC32(0)
	d.SetPrevDataIndex(Invalid)
	d.SetNextDataIndex(Invalid)
	d.SetState(StateFree)
}

// CopyFrom overwrites d's bytes with src's, field for field. Used by the
// two-phase move protocol: the destination becomes a byte-for-byte copy of
// the source.
func (d Descriptor) CopyFrom(src Descriptor) {
	copy(d.buf, src.buf)
}

// Array is a typed view over the descriptor array: MaxRecords contiguous
// Descriptor entries immediately following the header.
type Array struct {
	buf []byte
}

// NewArray wraps buf, which must be exactly maxRecords*DescriptorSize bytes.
func NewArray(buf []byte) Array {
	return Array{buf: buf}
}

// At returns the descriptor at the given index. The caller is responsible
// for ensuring index < maxRecords.
func (a Array) At(index uint64) Descriptor {
	start := index * DescriptorSize
	return NewDescriptor(a.buf[start : start+DescriptorSize])
}

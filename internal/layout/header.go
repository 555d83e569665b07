// Package layout defines the fixed on-disk byte layout of a dynrecord table
// file: the header, the descriptor array, and the sizing arithmetic that
// relates them to the data area. Nothing here interprets record bytes or
// drives allocation; it only knows field offsets.
package layout

import "encoding/binary"

// FormatVersion is the only version this package understands. A file whose
// stored version differs is incompatible and must not be opened.
const FormatVersion uint32 = 1

// Invalid is the sentinel for "no index" — all-ones in 64 bits. It is used
// for descriptor indices, move-pair entries, and linked-list endpoints.
const Invalid uint64 = ^uint64(0)

// Fixed-order header field offsets, little-endian. version is a u32 at
// offset 0; everything after it is a u64, so a 4-byte pad keeps the u64s
// naturally aligned. Field order matches the external format exactly;
// only the padding is an implementation choice.
const (
	offVersion              = 0
	offHeaderSize           = 8
	offRecordDescriptorSize = 16
	offDataAreaOffset       = 24
	offDataAreaSize         = 32
	offNextDataOffset       = 40
	offNextFreeRecordIndex  = 48
	offMaxRecords           = 56
	offCompactedSrcIndex    = 64
	offCompactedDstIndex    = 72
	offUserHeader           = 80

	// fixedFieldsSize is the number of bytes occupied by the fields above,
	// before the opaque user-header blob.
	fixedFieldsSize = offUserHeader
)

// HeaderSize returns the total on-disk header size for a user-header blob of
// userHeaderSize bytes, rounded up to an 8-byte boundary so the descriptor
// array that immediately follows stays 8-byte aligned.
func HeaderSize(userHeaderSize uint64) uint64 {
	return align8(fixedFieldsSize + userHeaderSize)
}

func align8(n uint64) uint64 { return (n + 7) &^ 7 }

// Header is a typed view over the header region of an open mapping. Every
// accessor reads or writes straight through to the backing bytes; there is
// no cached copy, and writes to distinct fields carry no ordering guarantee
// relative to each other. Only the move pair (CompactedSrcIndex,
// CompactedDstIndex) is treated as meaningfully atomic by the recovery
// protocol, and even that is by convention of write order, not by any
// hardware guarantee this package provides.
type Header struct {
	buf []byte
}

// NewHeader wraps buf, which must be exactly HeaderSize(n) bytes for some n,
// as a header view.
func NewHeader(buf []byte) Header {
	return Header{buf: buf}
}

func (h Header) Version() uint32     { return binary.LittleEndian.Uint32(h.buf[offVersion:]) }
func (h Header) SetVersion(v uint32) { binary.LittleEndian.PutUint32(h.buf[offVersion:], v) }

func (h Header) HeaderSize() uint64     { return binary.LittleEndian.Uint64(h.buf[offHeaderSize:]) }
func (h Header) SetHeaderSize(v uint64) { binary.LittleEndian.PutUint64(h.buf[offHeaderSize:], v) }

func (h Header) RecordDescriptorSize() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offRecordDescriptorSize:])
}
func (h Header) SetRecordDescriptorSize(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offRecordDescriptorSize:], v)
}

func (h Header) DataAreaOffset() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offDataAreaOffset:])
}
func (h Header) SetDataAreaOffset(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offDataAreaOffset:], v)
}

func (h Header) DataAreaSize() uint64 { return binary.LittleEndian.Uint64(h.buf[offDataAreaSize:]) }
func (h Header) SetDataAreaSize(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offDataAreaSize:], v)
}

func (h Header) NextDataOffset() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offNextDataOffset:])
}
func (h Header) SetNextDataOffset(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offNextDataOffset:], v)
}

func (h Header) NextFreeRecordIndex() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offNextFreeRecordIndex:])
}
func (h Header) SetNextFreeRecordIndex(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offNextFreeRecordIndex:], v)
}

func (h Header) MaxRecords() uint64     { return binary.LittleEndian.Uint64(h.buf[offMaxRecords:]) }
func (h Header) SetMaxRecords(v uint64) { binary.LittleEndian.PutUint64(h.buf[offMaxRecords:], v) }

func (h Header) CompactedSrcIndex() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offCompactedSrcIndex:])
}
func (h Header) SetCompactedSrcIndex(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offCompactedSrcIndex:], v)
}

func (h Header) CompactedDstIndex() uint64 {
	return binary.LittleEndian.Uint64(h.buf[offCompactedDstIndex:])
}
func (h Header) SetCompactedDstIndex(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[offCompactedDstIndex:], v)
}

// UserHeader returns the mutable opaque blob reserved for the caller. Its
// length is HeaderSize() - fixedFieldsSize. The package never interprets
// these bytes.
func (h Header) UserHeader() []byte {
	return h.buf[offUserHeader:]
}

// HasMovePending reports whether the move pair currently names an in-flight
// slot move.
func (h Header) HasMovePending() bool {
	return h.CompactedSrcIndex() != Invalid || h.CompactedDstIndex() != Invalid
}

// SetMovePair writes both halves of the move pair. Per the crash-recovery
// protocol this is the closest thing the header has to an atomic update: the
// two stores happen back to back with nothing else observing the mapping
// in between from this process's perspective. It gives no stronger guarantee
// than that.
func (h Header) SetMovePair(src, dst uint64) {
	h.SetCompactedSrcIndex(src)
	h.SetCompactedDstIndex(dst)
}

// ClearMovePair resets the move pair to (Invalid, Invalid).
func (h Header) ClearMovePair() {
	h.SetMovePair(Invalid, Invalid)
}

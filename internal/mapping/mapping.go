// Package mapping owns a single memory-mapped file and the mechanics of
// growing it in place. It has no opinion about what the bytes mean; the
// layout and table packages build the record store's structure on top.
package mapping

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/dynrecord/pkg/fs"
)

// Mapping is a read-write memory mapping over an open file, kept in sync
// with the file's current length.
type Mapping struct {
	file fs.File
	fd   int
	data []byte
}

// Open truncates f to size (growing a sparse file if needed, never
// shrinking an existing larger one below size) and maps the first size
// bytes read-write.
func Open(f fs.File, size int64) (*Mapping, error) {
	fd := int(f.Fd())

	if err := unix.Ftruncate(fd, size); err != nil {
		return nil, fmt.Errorf("mapping: ftruncate to %d: %w", size, err)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping: mmap %d bytes: %w", size, err)
	}

	return &Mapping{file: f, fd: fd, data: data}, nil
}

// Bytes returns the current mapped region. The slice is invalidated by the
// next call to Resize or Close.
func (m *Mapping) Bytes() []byte {
	return m.data
}

// Len returns the current mapped length in bytes.
func (m *Mapping) Len() int64 {
	return int64(len(m.data))
}

// Resize grows the backing file to newSize and remaps it. newSize must be
// >= the current length; this package never shrinks a live mapping, since
// the table layer only ever grows the data area.
func (m *Mapping) Resize(newSize int64) error {
	if newSize < int64(len(m.data)) {
		return fmt.Errorf("mapping: refusing to shrink mapping from %d to %d", len(m.data), newSize)
	}

	if err := unix.Ftruncate(m.fd, newSize); err != nil {
		return fmt.Errorf("mapping: ftruncate to %d: %w", newSize, err)
	}

	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("mapping: munmap before remap: %w", err)
	}

	data, err := unix.Mmap(m.fd, 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mapping: remap to %d: %w", newSize, err)
	}

	m.data = data

	return nil
}

// Close unmaps the region and closes the underlying file.
func (m *Mapping) Close() error {
	var unmapErr error

	if m.data != nil {
		unmapErr = unix.Munmap(m.data)
		m.data = nil
	}

	closeErr := m.file.Close()

	if unmapErr != nil {
		return fmt.Errorf("mapping: munmap: %w", unmapErr)
	}

	return closeErr
}

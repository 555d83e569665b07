package dtable

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/calvinalkan/dynrecord/internal/layout"
	"github.com/calvinalkan/dynrecord/internal/mapping"
	"github.com/calvinalkan/dynrecord/pkg/fs"
)

// Open opens or creates a persistent dynamic record store at opts.Path. A
// freshly created file is stamped with a header whose on-disk version,
// header size and descriptor size bind for the lifetime of the file; a
// later Open of an existing file with incompatible sizes fails with
// ErrIncompatible.
//
// Open always runs the crash-recovery protocol before returning a usable
// Table, even against a file that was closed cleanly; the protocol is
// idempotent against a no-op state.
func Open(opts Options) (*Table, error) {
	if opts.MaxRecords == 0 {
		return nil, fmt.Errorf("dtable: %w: MaxRecords must be > 0", ErrInvalidInput)
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = fs.NewReal()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &Table{
		path: opts.Path,
		fsys: fsys,
		log:  logger,
		opts: opts,

		headDataIdx: layout.Invalid,
		tailDataIdx: layout.Invalid,
	}

	if !opts.DisableLocking {
		lock, err := acquireWriterLockFS(fsys, opts.Path)
		if err != nil {
			return nil, err
		}
		t.lock = lock
	}

	if err := t.openMapping(); err != nil {
		if t.lock != nil {
			t.lock.release()
		}
		return nil, err
	}

	if err := t.recover(); err != nil {
		_ = t.m.Close()
		if t.lock != nil {
			t.lock.release()
		}
		return nil, err
	}

	t.log.Info("dtable: opened", "path", opts.Path,
		"max_records", t.maxRecords, "data_area_size", t.header.DataAreaSize(),
		"count", t.countRecords())

	return t, nil
}

// openMapping is the file-creation and header-stamping half of Open:
// acquire the backing fs.File, size it, map it, and either adopt or stamp
// the header.
func (t *Table) openMapping() error {
	headerSizeGuess := layout.HeaderSize(t.opts.UserHeaderSize)

	f, err := t.fsys.OpenFile(t.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("dtable: open %q: %w", t.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("dtable: stat %q: %w", t.path, err)
	}

	initialSize := info.Size()
	if initialSize < int64(headerSizeGuess) {
		initialSize = int64(headerSizeGuess)
	}

	m, err := mapping.Open(f, initialSize)
	if err != nil {
		_ = f.Close()
		return err
	}

	t.m = m
	t.header = layout.NewHeader(m.Bytes()[:headerSizeGuess])

	if t.header.MaxRecords() == 0 {
		if err := t.stampFreshHeader(headerSizeGuess); err != nil {
			return err
		}
	} else {
		if err := t.adoptExistingHeader(headerSizeGuess); err != nil {
			return err
		}
	}

	t.maxRecords = t.header.MaxRecords()
	t.dataAreaOffset = t.header.DataAreaOffset()
	t.initialDataAreaSize = t.opts.initialDataAreaSize()
	t.gapThresholdPct = t.opts.gapThresholdPct()

	totalSize := int64(t.dataAreaOffset + t.header.DataAreaSize())
	if m.Len() != totalSize {
		if err := t.m.Resize(totalSize); err != nil {
			return err
		}
	}

	t.rebindViews()

	return nil
}

// stampFreshHeader handles the "header.max_records == 0" branch of
// openMapping: write version, sizes, and a zeroed body for a brand new file.
func (t *Table) stampFreshHeader(headerSize uint64) error {
	dataAreaSize := t.opts.initialDataAreaSize()
	dataAreaOffset := headerSize + t.opts.MaxRecords*layout.DescriptorSize
	total := int64(dataAreaOffset + dataAreaSize)

	if err := t.m.Resize(total); err != nil {
		return err
	}

	t.header = layout.NewHeader(t.m.Bytes()[:headerSize])
	t.header.SetVersion(layout.FormatVersion)
	t.header.SetHeaderSize(headerSize)
	t.header.SetRecordDescriptorSize(layout.DescriptorSize)
	t.header.SetDataAreaOffset(dataAreaOffset)
	t.header.SetDataAreaSize(dataAreaSize)
	t.header.SetNextDataOffset(0)
	t.header.SetNextFreeRecordIndex(0)
	t.header.SetMaxRecords(t.opts.MaxRecords)
	t.header.ClearMovePair()

	t.log.Info("dtable: created new table", "path", t.path,
		"max_records", t.opts.MaxRecords, "initial_data_area_size", dataAreaSize)

	return nil
}

// adoptExistingHeader applies the "stored values win" rule: the on-disk
// version, header size and descriptor size must match exactly, and
// max_records/data_area_offset/data_area_size are adopted from disk
// regardless of what the caller asked for.
func (t *Table) adoptExistingHeader(headerSizeGuess uint64) error {
	if t.header.Version() != layout.FormatVersion {
		return fmt.Errorf("dtable: %w: file version %d, expected %d",
			ErrIncompatible, t.header.Version(), layout.FormatVersion)
	}

	if t.header.HeaderSize() != headerSizeGuess {
		return fmt.Errorf("dtable: %w: header size %d on disk, expected %d (UserHeaderSize mismatch?)",
			ErrIncompatible, t.header.HeaderSize(), headerSizeGuess)
	}

	if t.header.RecordDescriptorSize() != layout.DescriptorSize {
		return fmt.Errorf("dtable: %w: descriptor size %d on disk, expected %d",
			ErrIncompatible, t.header.RecordDescriptorSize(), layout.DescriptorSize)
	}

	return nil
}

// rebindViews recomputes the header and descriptor-array typed views after
// the mapping has been created or remapped to a new address.
func (t *Table) rebindViews() {
	b := t.m.Bytes()
	headerSize := t.header.HeaderSize()

	t.header = layout.NewHeader(b[:headerSize])
	descStart := headerSize
	descEnd := descStart + t.maxRecordsOrStored()*layout.DescriptorSize
	t.descs = layout.NewArray(b[descStart:descEnd])
	t.dataAreaOffset = t.header.DataAreaOffset()
}

// maxRecordsOrStored returns t.maxRecords once known, or reads it fresh
// from the header during the bootstrap call inside openMapping before the
// field has been cached.
func (t *Table) maxRecordsOrStored() uint64 {
	if t.maxRecords != 0 {
		return t.maxRecords
	}
	return t.header.MaxRecords()
}

// Close releases the writer lock (if held) and unmaps the backing file.
// It does not fsync the mapping; durability is governed entirely by the OS
// page cache.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	err := t.m.Close()

	if t.lock != nil {
		t.lock.release()
	}

	return err
}

func (t *Table) checkOpen() error {
	if t.closed {
		return ErrClosed
	}
	return nil
}

// acquireWriterLockFS opens <path>.lock through the table's fs.FS seam
// instead of the os package directly, so fault-injecting filesystems can
// exercise lock acquisition too, and takes the writer lock on it.
func acquireWriterLockFS(fsys fs.FS, path string) (*writerLock, error) {
	lockPath := path + ".lock"

	f, err := fsys.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("dtable: open lock file: %w", err)
	}

	if err := flockFile(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrBusy) {
			return nil, ErrBusy
		}
		return nil, err
	}

	return &writerLock{file: f}, nil
}

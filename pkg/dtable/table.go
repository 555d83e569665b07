// Package dtable implements a persistent dynamic record store: a single
// memory-mapped file holding variable-sized opaque byte records under
// stable integer indices, with online compaction and crash recovery.
package dtable

import (
	"log/slog"

	"github.com/calvinalkan/dynrecord/internal/layout"
	"github.com/calvinalkan/dynrecord/internal/mapping"
	"github.com/calvinalkan/dynrecord/pkg/fs"
)

// DefaultInitialDataAreaSize is used when Options.InitialDataAreaSize is zero.
const DefaultInitialDataAreaSize = 1024 * 1024

// DefaultGapCompactionThresholdPct is used when
// Options.GapCompactionThresholdPct is zero.
const DefaultGapCompactionThresholdPct = 30

// Options configures Open. MaxRecords and the user-header size are fixed
// for the lifetime of a file at first creation. Later opens must pass the
// same UserHeaderSize or Open fails with ErrIncompatible; MaxRecords is
// adopted from the file, whatever non-zero value the caller passes.
type Options struct {
	// Path is the backing file path.
	Path string

	// MaxRecords is the size of the descriptor array. Required, must be > 0.
	MaxRecords uint64

	// UserHeaderSize is the number of bytes reserved for the caller's
	// opaque header blob. It fixes the on-disk header size at first
	// creation; a later open of an existing file with a different value
	// fails with ErrIncompatible.
	UserHeaderSize uint64

	// InitialDataAreaSize is the data area size stamped into a freshly
	// created file. On every open it is also the base of the gap-compaction
	// threshold, and Clear resets the data area to it. Defaults to
	// DefaultInitialDataAreaSize.
	InitialDataAreaSize uint64

	// GapCompactionThresholdPct is the percentage (0-100) of
	// InitialDataAreaSize that gap_space_size must exceed before
	// tryCompactData will compact. Defaults to
	// DefaultGapCompactionThresholdPct. Stored only in memory, not on disk:
	// an operator may retune it across opens of the same file.
	GapCompactionThresholdPct uint8

	// FS is the filesystem implementation to use. Defaults to fs.NewReal().
	// Tests pass fs.Chaos or fs.Crash here to drive fault injection.
	FS fs.FS

	// Logger receives structured diagnostics (open, grow, compact,
	// recover). Defaults to slog.Default().
	Logger *slog.Logger

	// DisableLocking skips acquiring the advisory writer lock. Used by
	// read-only inspection tools that accept racing with a live writer.
	DisableLocking bool
}

func (o Options) gapThresholdPct() uint64 {
	if o.GapCompactionThresholdPct == 0 {
		return DefaultGapCompactionThresholdPct
	}
	return uint64(o.GapCompactionThresholdPct)
}

func (o Options) initialDataAreaSize() uint64 {
	if o.InitialDataAreaSize == 0 {
		return DefaultInitialDataAreaSize
	}
	return o.InitialDataAreaSize
}

// Table is a single open handle to a persistent dynamic record store. A
// Table is not safe for concurrent use by multiple goroutines; callers
// needing concurrent access must serialize their own calls.
type Table struct {
	path   string
	fsys   fs.FS
	log    *slog.Logger
	opts   Options
	lock   *writerLock
	closed bool

	m *mapping.Mapping

	header layout.Header
	descs  layout.Array

	maxRecords          uint64
	dataAreaOffset      uint64
	initialDataAreaSize uint64 // captured once; drives the compaction-threshold quirk
	gapThresholdPct     uint64

	// Derived, in-memory only state. Rebuilt on every Open.
	freeIndices  []uint64
	headDataIdx  uint64
	tailDataIdx  uint64
	gapSpaceSize uint64
}

func (t *Table) dataAreaBytes() []byte {
	b := t.m.Bytes()
	return b[t.dataAreaOffset:]
}

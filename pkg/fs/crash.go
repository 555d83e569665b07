package fs

import (
	"fmt"
	"os"
)

// Crash wraps an [FS] and adds the ability to truncate a file to a chosen
// size between two opens, simulating a process that died before an
// in-flight write or growth reached disk.
//
// Crash deliberately does not intercept individual Read/Write calls the
// way [Chaos] intercepts whole method invocations: a memory-mapped writer
// never issues a [File.Write] for the bytes it mutates, so a seam built
// around that interface would have nothing to see. The only crash this
// type can honestly inject is the one every crash ultimately looks like
// from outside the process: "the file on disk is shorter than the last
// thing that opened it expected".
//
// SimulateCrash manipulates bytes on disk directly with [os.Truncate], so
// it only behaves correctly when paths passed to it resolve on the real
// filesystem (as with [Real]); wrapping another [Chaos] or [Crash] under
// it is fine, wrapping a fully virtual FS is not.
//
// Crash is not meant for production use.
type Crash struct {
	FS
}

// NewCrash wraps fsys. Every method other than SimulateCrash passes
// through to fsys unchanged. Panics if fsys is nil.
func NewCrash(fsys FS) *Crash {
	if fsys == nil {
		panic("fs: Crash: fs is nil")
	}

	return &Crash{FS: fsys}
}

// SimulateCrash truncates the file at path to size bytes, discarding
// anything beyond it as if the writer died before that tail became
// durable. size must not exceed the file's current length; growing a file
// is not a crash.
func (c *Crash) SimulateCrash(path string, size int64) error {
	info, err := c.Stat(path)
	if err != nil {
		return fmt.Errorf("fs: crash: stat %q: %w", path, err)
	}

	if size > info.Size() {
		return fmt.Errorf("fs: crash: refusing to grow %q from %d to %d bytes", path, info.Size(), size)
	}

	if err := os.Truncate(path, size); err != nil {
		return fmt.Errorf("fs: crash: truncate %q to %d bytes: %w", path, size, err)
	}

	return nil
}

var _ FS = (*Crash)(nil)

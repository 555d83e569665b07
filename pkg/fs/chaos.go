package fs

import (
	"os"
	"sync"
)

// Chaos wraps an [FS] and fails a chosen call the Nth time it is made,
// simulating ENOSPC/EIO and similar transient filesystem failures without
// needing a real full disk or a real I/O error.
//
// Chaos is not meant for production use.
type Chaos struct {
	fs FS

	mu    sync.Mutex
	calls map[string]int
	fails map[string]chaosFailure
}

type chaosFailure struct {
	n   int
	err error
}

// NewChaos wraps fsys. Calls pass through unmodified until a [Chaos.FailOn]
// rule is armed and its call count is reached. Panics if fsys is nil.
func NewChaos(fsys FS) *Chaos {
	if fsys == nil {
		panic("fs: Chaos: fs is nil")
	}

	return &Chaos{fs: fsys, calls: map[string]int{}, fails: map[string]chaosFailure{}}
}

// FailOn arms Chaos to return err from the nth call (1-indexed, per
// method) to one of: "Open", "Create", "OpenFile", "ReadFile",
// "WriteFile", "ReadDir", "MkdirAll", "Stat", "Exists", "Remove",
// "RemoveAll", "Rename". Calls before the nth, and all calls after it,
// pass through to the wrapped FS.
func (c *Chaos) FailOn(method string, n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fails[method] = chaosFailure{n: n, err: err}
}

func (c *Chaos) trip(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[method]++

	f, armed := c.fails[method]
	if armed && c.calls[method] == f.n {
		return f.err
	}

	return nil
}

func (c *Chaos) Open(path string) (File, error) {
	if err := c.trip("Open"); err != nil {
		return nil, err
	}
	return c.fs.Open(path)
}

func (c *Chaos) Create(path string) (File, error) {
	if err := c.trip("Create"); err != nil {
		return nil, err
	}
	return c.fs.Create(path)
}

func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := c.trip("OpenFile"); err != nil {
		return nil, err
	}
	return c.fs.OpenFile(path, flag, perm)
}

func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if err := c.trip("ReadFile"); err != nil {
		return nil, err
	}
	return c.fs.ReadFile(path)
}

func (c *Chaos) WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := c.trip("WriteFile"); err != nil {
		return err
	}
	return c.fs.WriteFile(path, data, perm)
}

func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if err := c.trip("ReadDir"); err != nil {
		return nil, err
	}
	return c.fs.ReadDir(path)
}

func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if err := c.trip("MkdirAll"); err != nil {
		return err
	}
	return c.fs.MkdirAll(path, perm)
}

func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if err := c.trip("Stat"); err != nil {
		return nil, err
	}
	return c.fs.Stat(path)
}

func (c *Chaos) Exists(path string) (bool, error) {
	if err := c.trip("Exists"); err != nil {
		return false, err
	}
	return c.fs.Exists(path)
}

func (c *Chaos) Remove(path string) error {
	if err := c.trip("Remove"); err != nil {
		return err
	}
	return c.fs.Remove(path)
}

func (c *Chaos) RemoveAll(path string) error {
	if err := c.trip("RemoveAll"); err != nil {
		return err
	}
	return c.fs.RemoveAll(path)
}

func (c *Chaos) Rename(oldpath, newpath string) error {
	if err := c.trip("Rename"); err != nil {
		return err
	}
	return c.fs.Rename(oldpath, newpath)
}

var _ FS = (*Chaos)(nil)

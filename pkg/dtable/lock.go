package dtable

import (
	"errors"
	"syscall"

	"github.com/calvinalkan/dynrecord/pkg/fs"
)

// writerLock is a non-blocking, advisory, per-process exclusive lock on
// <path>.lock. It exists to turn "two Table handles opened against the same
// file in one process" from silent mapping corruption into a typed ErrBusy;
// it makes no claim about other processes or other machines.
//
// The lock file is intentionally left on disk after release, since deleting
// it would race a second acquirer that opened it just before the first
// released.
type writerLock struct {
	file fs.File
}

// flockFile takes an exclusive, non-blocking flock on f's underlying
// descriptor. On contention it returns ErrBusy.
func flockFile(f fs.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return ErrBusy
		}
		return err
	}
	return nil
}

// release unlocks and closes the lock file handle without removing it.
func (l *writerLock) release() {
	if l == nil || l.file == nil {
		return
	}

	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

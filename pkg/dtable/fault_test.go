package dtable_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dynrecord/pkg/dtable"
	"github.com/calvinalkan/dynrecord/pkg/fs"
)

// A real process death never arrives as a file that stopped existing; it
// arrives as a file whose tail never made it past the page cache. This
// drives that through the real Open entry point, not through reaching into
// Table internals: grow the data area for real, cut the file back to its
// pre-growth length with fs.Crash, and let recovery run on the real bytes.
func TestOpenRecoversFromTruncatedGrowth(t *testing.T) {
	t.Parallel()

	real := fs.NewReal()
	crash := fs.NewCrash(real)
	path := filepath.Join(t.TempDir(), "truncated.dtable")

	tb, err := dtable.Open(dtable.Options{
		Path:                path,
		MaxRecords:          4,
		InitialDataAreaSize: 32,
		FS:                  crash,
	})
	require.NoError(t, err)

	s := dtable.NewStorage(tb)

	safe, err := s.CreateRecord([]byte("0123456789"))
	require.NoError(t, err)

	preGrowth, err := os.Stat(path)
	require.NoError(t, err)

	// This doesn't fit in the remaining 22 bytes of a 32-byte data area,
	// so it forces expandDataArea to double it to 64 and grow the file;
	// lost's bytes then run past the old 32-byte end into the new tail.
	lost, err := s.CreateRecord([]byte("this record lives entirely in the grown tail.."))
	require.NoError(t, err)

	postGrowth, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, postGrowth.Size(), preGrowth.Size())

	require.NoError(t, tb.Close())

	require.NoError(t, crash.SimulateCrash(path, preGrowth.Size()))

	tb2, err := dtable.Open(dtable.Options{
		Path:       path,
		MaxRecords: 4,
		FS:         crash,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tb2.Close() })

	require.Equal(t, []byte("0123456789"), tb2.GetRecordWithValidation(safe))
	require.Nil(t, tb2.GetRecordWithValidation(lost))
	require.Equal(t, uint64(1), tb2.Count())
}

// Open acquires the writer lock file before it opens the main table file;
// failing the first OpenFile call must surface as a real error out of
// Open, not a panic or a silently empty table.
func TestOpenSurfacesInjectedLockFileFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chaos-lock.dtable")

	chaos := fs.NewChaos(fs.NewReal())
	chaos.FailOn("OpenFile", 1, errors.New("simulated: no space left on device"))

	_, err := dtable.Open(dtable.Options{Path: path, MaxRecords: 4, FS: chaos})
	require.Error(t, err)
	require.Contains(t, err.Error(), "simulated: no space left on device")
}

// The second OpenFile call is the main table file, made after the lock is
// already held; failing it must still surface cleanly.
func TestOpenSurfacesInjectedTableFileFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "chaos-table.dtable")

	chaos := fs.NewChaos(fs.NewReal())
	chaos.FailOn("OpenFile", 2, errors.New("simulated: read-only filesystem"))

	_, err := dtable.Open(dtable.Options{Path: path, MaxRecords: 4, FS: chaos})
	require.Error(t, err)
	require.Contains(t, err.Error(), "simulated: read-only filesystem")

	// The lock file was created and locked before the injected failure;
	// Open must have released it rather than leaving the session wedged.
	tb, err := dtable.Open(dtable.Options{Path: path, MaxRecords: 4})
	require.NoError(t, err)
	require.NoError(t, tb.Close())
}

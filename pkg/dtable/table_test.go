package dtable_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dynrecord/pkg/dtable"
)

func openT(t *testing.T, opts dtable.Options) *dtable.Table {
	t.Helper()

	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "test.dtable")
	}

	tb, err := dtable.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tb.Close() })

	return tb
}

// Scenario 1: fresh create / reopen.
func TestFreshCreateReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "t1.dtable")

	tb := openT(t, dtable.Options{Path: path, MaxRecords: 32, UserHeaderSize: 8})
	hdr := tb.HeaderData()
	require.GreaterOrEqual(t, len(hdr), 8)
	hdr[0] = 42
	require.NoError(t, tb.Close())

	tb2 := openT(t, dtable.Options{Path: path, MaxRecords: 32, UserHeaderSize: 8})
	require.Equal(t, uint64(0), tb2.Count())
	require.Equal(t, byte(42), tb2.HeaderData()[0])
}

// Scenario 2: mixed-size persistence, insertion order preserved through reopen.
func TestMixedSizePersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "t2.dtable")

	a := []byte("persistent_first:10,20,30")
	b := []byte("persistent_second:40,50,60,70")

	func() {
		tb := openT(t, dtable.Options{Path: path, MaxRecords: 8})
		s := dtable.NewStorage(tb)

		idxA, err := s.CreateRecord(a)
		require.NoError(t, err)
		require.NotEqual(t, dtable.Invalid, idxA)

		idxB, err := s.CreateRecord(b)
		require.NoError(t, err)
		require.NotEqual(t, dtable.Invalid, idxB)

		require.NoError(t, tb.Close())
	}()

	tb := openT(t, dtable.Options{Path: path, MaxRecords: 8})

	var got [][]byte
	for _, data := range tb.Iterate() {
		cp := append([]byte(nil), data...)
		got = append(got, cp)
	}

	require.Equal(t, [][]byte{a, b}, got)
}

// Scenario 3: slot reuse at capacity.
func TestSlotReuseAtCapacity(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 4})
	s := dtable.NewStorage(tb)

	var idx [4]uint64
	for i := range idx {
		got, err := s.CreateRecord([]byte("x"))
		require.NoError(t, err)
		require.NotEqual(t, dtable.Invalid, got)
		idx[i] = got
	}

	fifth, err := tb.AllocRecord(1)
	require.NoError(t, err)
	require.Equal(t, dtable.Invalid, fifth)

	require.True(t, s.DeleteRecord(idx[1]))

	reused, err := tb.AllocRecord(1)
	require.NoError(t, err)
	require.Equal(t, idx[1], reused)
}

// Scenario 4: data-area growth under pressure.
func TestDataAreaGrowth(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 10, InitialDataAreaSize: 256})
	s := dtable.NewStorage(tb)

	stored := 0
	payload := make([]byte, 40)

	for i := 0; i < 20; i++ {
		idx, err := s.CreateRecord(payload)
		require.NoError(t, err)
		if idx == dtable.Invalid {
			continue
		}
		stored++
	}

	require.GreaterOrEqual(t, stored, 6)
	require.Equal(t, uint64(stored), tb.Count())

	for idx, data := range tb.Iterate() {
		require.Equal(t, payload, data, "index %d", idx)
	}
}

// Scenario 5: compaction after fragmentation lets a large allocation succeed.
func TestCompactionAfterFragmentation(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 20, InitialDataAreaSize: 512})
	s := dtable.NewStorage(tb)

	small := make([]byte, 50)
	var indices []uint64

	for i := 0; i < 10; i++ {
		idx, err := s.CreateRecord(small)
		require.NoError(t, err)
		require.NotEqual(t, dtable.Invalid, idx)
		indices = append(indices, idx)
	}

	survivors := map[uint64][]byte{}
	for i, idx := range indices {
		if i%2 == 0 {
			survivors[idx] = small
			continue
		}
		require.True(t, s.DeleteRecord(idx))
	}

	large := make([]byte, 200)
	largeIdx, err := s.CreateRecord(large)
	require.NoError(t, err)
	require.NotEqual(t, dtable.Invalid, largeIdx)
	survivors[largeIdx] = large

	for idx, want := range survivors {
		got := tb.GetRecordWithValidation(idx)
		require.Equal(t, want, got, "index %d", idx)
	}
}

func TestAllocRecordZeroSize(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 4})

	idx, err := tb.AllocRecord(0)
	require.NoError(t, err)
	require.Equal(t, dtable.Invalid, idx)
}

func TestDeleteIdempotentOnNonStored(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 4})

	require.False(t, tb.DeleteRecord(0))

	idx, err := tb.AllocRecord(4)
	require.NoError(t, err)
	require.NotEqual(t, dtable.Invalid, idx)
	// Allocated but not committed: still not Stored.
	require.False(t, tb.DeleteRecord(idx))
}

func TestClearResetsToEmpty(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 4})
	s := dtable.NewStorage(tb)

	_, err := s.CreateRecord([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), tb.Count())

	require.NoError(t, tb.Clear())
	require.Equal(t, uint64(0), tb.Count())

	idx, err := s.CreateRecord([]byte("world"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx)
}

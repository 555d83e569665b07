package dtable_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dynrecord/pkg/dtable"
)

func TestStorageCreateGetDelete(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 8})
	s := dtable.NewStorage(tb)

	idx, err := s.CreateRecord([]byte("hello world"))
	require.NoError(t, err)
	require.NotEqual(t, dtable.Invalid, idx)
	require.Equal(t, []byte("hello world"), s.GetRecord(idx))

	require.True(t, s.DeleteRecord(idx))
	require.Nil(t, s.GetRecord(idx))
}

// Update in-place law: smaller bytes keep the same index and shrink data_size.
func TestUpdateRecordInPlace(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 8})
	s := dtable.NewStorage(tb)

	idx, err := s.CreateRecord([]byte("a longer original value"))
	require.NoError(t, err)

	newIdx, err := s.UpdateRecord(idx, []byte("short"))
	require.NoError(t, err)
	require.Equal(t, idx, newIdx)
	require.Equal(t, []byte("short"), s.GetRecord(idx))
}

// Update grow law: larger bytes may move to a new index; the new bytes read
// back at the returned index.
func TestUpdateRecordGrow(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 8})
	s := dtable.NewStorage(tb)

	idx, err := s.CreateRecord([]byte("short"))
	require.NoError(t, err)

	bigger := []byte("this value is considerably longer than the original")
	newIdx, err := s.UpdateRecord(idx, bigger)
	require.NoError(t, err)
	require.NotEqual(t, dtable.Invalid, newIdx)
	require.Equal(t, bigger, s.GetRecord(newIdx))
}

func TestUpdateRecordNotStoredReturnsInvalid(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 8})
	s := dtable.NewStorage(tb)

	idx, err := s.UpdateRecord(0, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, dtable.Invalid, idx)
}

func TestCreateRecordFullReturnsInvalid(t *testing.T) {
	t.Parallel()

	tb := openT(t, dtable.Options{MaxRecords: 1})
	s := dtable.NewStorage(tb)

	first, err := s.CreateRecord([]byte("x"))
	require.NoError(t, err)
	require.NotEqual(t, dtable.Invalid, first)

	second, err := s.CreateRecord([]byte("y"))
	require.NoError(t, err)
	require.Equal(t, dtable.Invalid, second)
}

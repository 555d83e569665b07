package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dynrecord/internal/config"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".dtable.json")

	want := config.Config{
		MaxRecords:                1000,
		InitialDataAreaSize:       1 << 20,
		GapCompactionThresholdPct: 25,
	}

	require.NoError(t, config.Save(path, want))

	got, err := config.Load(path, true)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// Save replaces an existing file wholesale rather than merging into it.
func TestSaveOverwritesExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".dtable.json")

	require.NoError(t, config.Save(path, config.Config{MaxRecords: 1}))
	require.NoError(t, config.Save(path, config.Config{MaxRecords: 2, GapCompactionThresholdPct: 10}))

	got, err := config.Load(path, true)
	require.NoError(t, err)
	require.Equal(t, config.Config{MaxRecords: 2, GapCompactionThresholdPct: 10}, got)
}

func TestLoadMissingDefaultPathIsNotAnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".dtable.json")

	got, err := config.Load(path, false)
	require.NoError(t, err)
	require.Equal(t, config.Config{}, got)
}

func TestLoadMissingExplicitPathIsAnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".dtable.json")

	_, err := config.Load(path, true)
	require.Error(t, err)
}

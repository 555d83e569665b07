package dtable_test

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/dynrecord/pkg/dtable"
)

// TestStateModelProperty drives a sequence of random operations against both
// a live Table and a trivial in-memory reference model, reopening the table
// at random intervals, and asserts the two agree after every step: a seeded
// rand.Source per subtest, a plain map as the oracle, go-cmp for deep
// comparison.
func TestStateModelProperty(t *testing.T) {
	t.Parallel()

	const seeds = 4
	for s := 0; s < seeds; s++ {
		seed := int64(1000 + s)
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()
			runStateModelProperty(t, seed)
		})
	}
}

func runStateModelProperty(t *testing.T, seed int64) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	path := filepath.Join(t.TempDir(), "model.dtable")

	const maxRecords = 64
	opts := dtable.Options{Path: path, MaxRecords: maxRecords, InitialDataAreaSize: 4096}

	tb, err := dtable.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tb.Close() })

	model := map[uint64][]byte{}

	const steps = 2000
	for i := 0; i < steps; i++ {
		switch rng.Intn(3) {
		case 0, 1:
			n := 1 + rng.Intn(64)
			data := make([]byte, n)
			rng.Read(data)

			s := dtable.NewStorage(tb)
			idx, err := s.CreateRecord(data)
			require.NoError(t, err)
			if idx != dtable.Invalid {
				model[idx] = data
			}
		default:
			if len(model) == 0 {
				continue
			}
			target := pickModelKey(rng, model)
			require.True(t, tb.DeleteRecord(target))
			delete(model, target)
		}

		if rng.Intn(100) < 5 {
			require.NoError(t, tb.Close())
			tb, err = dtable.Open(opts)
			require.NoError(t, err)
		}

		assertMatchesModel(t, tb, model)
	}
}

func pickModelKey(rng *rand.Rand, model map[uint64][]byte) uint64 {
	n := rng.Intn(len(model))
	for k := range model {
		if n == 0 {
			return k
		}
		n--
	}
	panic("unreachable")
}

func assertMatchesModel(t *testing.T, tb *dtable.Table, model map[uint64][]byte) {
	t.Helper()

	require.Equal(t, uint64(len(model)), tb.Count())

	for idx, want := range model {
		got := tb.GetRecordWithValidation(idx)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("record %d mismatch (-want +got):\n%s", idx, diff)
		}
	}
}

// dtable-bench seeds N records of varying size into a scratch table file
// and reports allocate/write/commit/compact throughput, mirroring the
// donor's own bench-style command but self-contained (no external
// benchmark runner dependency).
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/dynrecord/pkg/dtable"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	fs := flag.NewFlagSet("dtable-bench", flag.ContinueOnError)
	fs.SetOutput(errOut)

	path := fs.String("path", "", "scratch table file path (a temp file is used if empty)")
	count := fs.IntP("count", "n", 10000, "number of records to seed")
	minSize := fs.Int("min-size", 16, "minimum record size in bytes")
	maxSize := fs.Int("max-size", 512, "maximum record size in bytes")
	maxRecords := fs.Uint64("max-records", 0, "descriptor array capacity (defaults to count+1024)")
	seed := fs.Int64("seed", 1, "PRNG seed for record sizes")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	scratch := *path
	if scratch == "" {
		f, err := os.CreateTemp("", "dtable-bench-*.dat")
		if err != nil {
			fmt.Fprintln(errOut, "dtable-bench:", err)
			return 1
		}
		scratch = f.Name()
		f.Close()
		defer os.Remove(scratch)
	}

	mr := *maxRecords
	if mr == 0 {
		mr = uint64(*count) + 1024
	}

	t, err := dtable.Open(dtable.Options{Path: scratch, MaxRecords: mr})
	if err != nil {
		fmt.Fprintln(errOut, "dtable-bench:", err)
		return 1
	}
	defer t.Close()

	storage := dtable.NewStorage(t)
	rng := rand.New(rand.NewSource(*seed))

	records := make([][]byte, *count)
	for i := range records {
		size := *minSize
		if *maxSize > *minSize {
			size += rng.Intn(*maxSize - *minSize)
		}
		records[i] = make([]byte, size)
		rng.Read(records[i])
	}

	start := time.Now()
	indices := make([]uint64, 0, *count)
	for _, r := range records {
		idx, err := storage.CreateRecord(r)
		if err != nil {
			fmt.Fprintln(errOut, "dtable-bench: create:", err)
			return 1
		}
		if idx == dtable.Invalid {
			break
		}
		indices = append(indices, idx)
	}
	createElapsed := time.Since(start)

	start = time.Now()
	t.ForceCompact()
	compactElapsed := time.Since(start)

	fmt.Fprintf(out, "seeded:   %d records\n", len(indices))
	fmt.Fprintf(out, "create:   %v total, %v/op\n", createElapsed, createElapsed/time.Duration(max(len(indices), 1)))
	fmt.Fprintf(out, "compact:  %v\n", compactElapsed)
	fmt.Fprintf(out, "count:    %d\n", t.Count())

	return 0
}

package fs_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/dynrecord/pkg/fs"
)

const testContentHello = "hello"

// A rename-based atomic write either lands whole or not at all: once
// WriteWithDefaults returns, the destination already holds the full content,
// so a simulated crash at the file's current length leaves it intact.
func TestAtomicWriteFile_DurableAfterCrash(t *testing.T) {
	t.Parallel()

	real := fs.NewReal()
	path := filepath.Join(t.TempDir(), "final.txt")

	writer := fs.NewAtomicWriter(real)

	err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello))
	if err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}

	crash := fs.NewCrash(real)

	info, err := real.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if err := crash.SimulateCrash(path, info.Size()); err != nil {
		t.Fatalf("fs.Crash: %v", err)
	}

	got, err := real.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content=%q, want %q", string(got), testContentHello)
	}
}

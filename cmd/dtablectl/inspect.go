package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/calvinalkan/dynrecord/pkg/dtable"
)

// inspectShell is an interactive REPL over an already-open table, used by
// `dtablectl inspect` for ad-hoc exploration during development, in the
// donor's sloty idiom (liner-backed prompt, history file, simple word
// commands).
type inspectShell struct {
	table   *dtable.Table
	storage *dtable.Storage
	path    string
	out     io.Writer
	errOut  io.Writer
	line    *liner.State
}

func runInspectShell(t *dtable.Table, path string, out, errOut io.Writer) int {
	s := &inspectShell{
		table:   t,
		storage: dtable.NewStorage(t),
		path:    path,
		out:     out,
		errOut:  errOut,
	}
	return s.run()
}

func historyFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dtablectl_history")
}

func (s *inspectShell) run() int {
	s.line = liner.NewLiner()
	defer s.line.Close()

	s.line.SetCtrlCAborts(true)

	if f, err := os.Open(historyFilePath()); err == nil {
		_, _ = s.line.ReadHistory(f)
		f.Close()
	}

	fmt.Fprintf(s.out, "dtablectl inspect - %s (max_records=%d, count=%d)\n",
		s.path, s.table.MaxRecords(), s.table.Count())
	fmt.Fprintln(s.out, "Type 'help' for available commands.")

	for {
		input, err := s.line.Prompt("dtable> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Fprintln(s.out, "\nBye!")
				break
			}
			fmt.Fprintln(s.errOut, "dtablectl inspect:", err)
			return 1
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		s.line.AppendHistory(input)

		fields := strings.Fields(input)
		cmd, args := strings.ToLower(fields[0]), fields[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			break
		}

		s.dispatch(cmd, args)
	}

	s.saveHistory()

	return 0
}

func (s *inspectShell) saveHistory() {
	path := historyFilePath()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = s.line.WriteHistory(f)
		f.Close()
	}
}

func (s *inspectShell) dispatch(cmd string, args []string) {
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "put":
		s.cmdPut(args)
	case "get":
		s.cmdGet(args)
	case "del", "delete":
		s.cmdDelete(args)
	case "ls", "list":
		s.cmdLs()
	case "count", "len":
		fmt.Fprintln(s.out, s.table.Count())
	case "compact":
		s.table.ForceCompact()
		fmt.Fprintln(s.out, "ok")
	default:
		fmt.Fprintf(s.out, "unknown command: %s (type 'help' for commands)\n", cmd)
	}
}

func (s *inspectShell) printHelp() {
	fmt.Fprintln(s.out, "  put <text...>     Insert a record from the given text, prints its index")
	fmt.Fprintln(s.out, "  get <index>       Print a stored record's bytes")
	fmt.Fprintln(s.out, "  del <index>       Delete a stored record")
	fmt.Fprintln(s.out, "  ls                List all stored indices and sizes")
	fmt.Fprintln(s.out, "  count             Print the live record count")
	fmt.Fprintln(s.out, "  compact           Force a data-area compaction pass")
	fmt.Fprintln(s.out, "  exit / quit / q   Leave the shell")
}

func (s *inspectShell) cmdPut(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "usage: put <text...>")
		return
	}

	index, err := s.storage.CreateRecord([]byte(strings.Join(args, " ")))
	if err != nil {
		fmt.Fprintln(s.errOut, "put:", err)
		return
	}
	if index == dtable.Invalid {
		fmt.Fprintln(s.out, "table is full")
		return
	}

	fmt.Fprintln(s.out, index)
}

func (s *inspectShell) cmdGet(args []string) {
	index, ok := s.parseIndex(args)
	if !ok {
		return
	}

	data := s.storage.GetRecord(index)
	if data == nil {
		fmt.Fprintln(s.out, "(not found)")
		return
	}

	fmt.Fprintln(s.out, string(data))
}

func (s *inspectShell) cmdDelete(args []string) {
	index, ok := s.parseIndex(args)
	if !ok {
		return
	}

	if !s.storage.DeleteRecord(index) {
		fmt.Fprintln(s.out, "not stored")
		return
	}

	fmt.Fprintln(s.out, "ok")
}

func (s *inspectShell) cmdLs() {
	for index, data := range s.table.Iterate() {
		fmt.Fprintf(s.out, "%d\t%d bytes\n", index, len(data))
	}
}

func (s *inspectShell) parseIndex(args []string) (uint64, bool) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: <command> <index>")
		return 0, false
	}

	index, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(s.out, "invalid index:", err)
		return 0, false
	}

	return index, true
}

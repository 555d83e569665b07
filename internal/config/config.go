// Package config loads table parameters (max_records, initial data area
// size, gap compaction threshold) from a HuJSON (JSON-with-comments)
// config file, merged with explicit CLI overrides using a
// load-then-override precedence.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// ConfigFileName is the default config file name looked up next to the
// table file when no explicit --config flag is given.
const ConfigFileName = ".dtable.json"

// ErrConfigInvalid marks a config file that failed to parse or validate.
var ErrConfigInvalid = errors.New("config: invalid")

// Config holds the table parameters a command-line tool needs to open or
// create a dtable file. Zero fields mean "use the table package default".
type Config struct {
	MaxRecords               uint64 `json:"max_records,omitempty"`
	InitialDataAreaSize      uint64 `json:"initial_data_area_size,omitempty"`
	GapCompactionThresholdPct uint8  `json:"gap_compaction_threshold_pct,omitempty"`
}

// Load reads path if it exists (tolerating the absence of an explicitly
// unspecified default path) and returns the parsed Config. A missing file
// at the default ConfigFileName is not an error; a missing file at an
// explicitly given path is.
func Load(path string, explicit bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("config: read %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: not valid JSONC: %w", ErrConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, nil
}

// Merge overlays non-zero fields of override onto base, implementing
// "CLI flags win over config file" precedence.
func Merge(base, override Config) Config {
	out := base

	if override.MaxRecords != 0 {
		out.MaxRecords = override.MaxRecords
	}
	if override.InitialDataAreaSize != 0 {
		out.InitialDataAreaSize = override.InitialDataAreaSize
	}
	if override.GapCompactionThresholdPct != 0 {
		out.GapCompactionThresholdPct = override.GapCompactionThresholdPct
	}

	return out
}

// Save writes cfg to path as indented JSON, replacing any existing file in
// a single rename so a reader never observes a half-written config. It is
// used by `dtablectl create` to persist the parameters a table was
// actually created with, so later commands against the same file resolve
// the same defaults without repeating every flag.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal %q: %w", path, err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("config: write %q: %w", path, err)
	}

	return nil
}

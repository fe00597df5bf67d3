// Package file provides JSON snapshot implementations of the storage interfaces.
//
// Each store keeps its records in memory and rewrites one JSON file per
// mutation with an atomic temp-file + rename. Malformed records found on load
// are quarantined (logged and skipped) instead of failing the whole file;
// a file that is not a JSON array fails loudly.
package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// File names inside a data directory.
const (
	MessagesFile     = "messages.json"
	TradesFile       = "trades.json"
	PairingStateFile = "pairing_state.json"
)

// ErrCorrupt is returned when a snapshot file cannot be decoded at all.
var ErrCorrupt = errors.New("corrupt snapshot file")

// Quarantined is a record skipped on load.
type Quarantined struct {
	Index int    // position in the file's array
	Raw   string // raw JSON of the record
	Err   error
}

func (q Quarantined) String() string {
	return fmt.Sprintf("record %d: %v", q.Index, q.Err)
}

// writeJSONAtomic writes v to path using an atomic write pattern:
// write to a temp file in the same directory, sync, close, rename.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readRecords reads a JSON array file and returns its raw elements.
// A missing file yields (nil, false, nil).
func readRecords(path string) ([]json.RawMessage, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	records, err := splitArray(data)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return records, true, nil
}

// splitArray decodes data as a JSON array of arbitrary elements.
// Empty input is an empty array.
func splitArray(data []byte) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}

func logQuarantine(logger zerolog.Logger, file string, q []Quarantined) {
	for _, rec := range q {
		logger.Warn().
			Str("file", file).
			Int("index", rec.Index).
			Err(rec.Err).
			Msg("quarantined malformed record")
	}
}

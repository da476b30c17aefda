// Package store implements the Persistence Layer: five independently
// versioned, atomically-written JSON files under a base directory
// (normally ~/.session-manager/). The server is the sole writer; each
// store's reads take its read lock, and writes are serialized per file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// file wraps one JSON document: atomic write, whole-file read, and a
// sequential migration chain keyed by stored version.
type file struct {
	mu   sync.Mutex
	path string
}

func newFile(baseDir, name string) *file {
	return &file{path: filepath.Join(baseDir, name)}
}

// migration transforms a document from one version to the next.
type migration func(json.RawMessage) (json.RawMessage, error)

// load reads the file, applying migrations in sequence if its stored
// version is older than currentVersion, and unmarshals the result into
// out. If the file is missing, out is left untouched and ok is false so
// the caller can write its own initial shape.
func (f *file) load(currentVersion int, migrations map[int]migration, out interface{}) (ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", f.path, err)
	}

	var envelope struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		// Corrupt file: reset to defaults rather than fail startup.
		return false, nil
	}

	if envelope.Version > currentVersion {
		// Unknown future version: reset to defaults per the documented policy.
		return false, nil
	}

	raw := json.RawMessage(data)
	for v := envelope.Version; v < currentVersion; v++ {
		migrate, ok := migrations[v]
		if !ok {
			return false, nil
		}
		raw, err = migrate(raw)
		if err != nil {
			return false, fmt.Errorf("migrating %s from v%d: %w", f.path, v, err)
		}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshaling %s: %w", f.path, err)
	}
	return true, nil
}

// save serializes v and atomically replaces the file: write to a .tmp
// sibling, then rename over the target, so a crash mid-write never leaves
// a partially-written file to be loaded.
func (f *file) save(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", f.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.path, err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, f.path, err)
	}
	return nil
}

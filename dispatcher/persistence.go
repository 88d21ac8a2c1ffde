// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dispatcher

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/qihexiang/jobs-dispatcher/queue"
)

// Store persists the pending (not running) side of every queue across
// restarts (spec §4.10). The mechanism is intentionally unspecified by
// the original design beyond "a snapshot on disk", so this is a plain
// JSON file rather than an embedded KV store — see DESIGN.md.
type Store struct {
	path string
	log  hclog.Logger
}

// NewStore builds a Store writing to path.
func NewStore(path string, log hclog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Save atomically overwrites the snapshot file: write to a temp file
// in the same directory, then rename, so a crash mid-write never
// leaves a truncated snapshot behind.
func (s *Store) Save(snapshot map[string][]queue.Entry) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".jobs-dispatcher-snapshot-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Load reads the snapshot file, returning an empty snapshot (not an
// error) if it doesn't exist yet — a fresh dispatcher has nothing to
// restore. A corrupt snapshot is logged and treated the same way
// rather than blocking startup, since refusing to start because of a
// broken cache file would be worse than starting empty.
func (s *Store) Load() map[string][]queue.Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read job snapshot, starting empty", "path", s.path, "error", err)
		}
		return map[string][]queue.Entry{}
	}
	var snapshot map[string][]queue.Entry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.log.Warn("job snapshot corrupt, starting empty", "path", s.path, "error", err)
		return map[string][]queue.Entry{}
	}
	return snapshot
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
)

// HistoryStore persists a vertex's full job history (spec's vertex
// config `history: path`) — every (user, task_id) -> VertexJobStatus
// the vertex has ever recorded, so restarts don't lose Finished/Error
// status for jobs the dispatcher may still ask about.
type HistoryStore struct {
	path string
	log  hclog.Logger
}

// NewHistoryStore builds a HistoryStore writing to path. An empty path
// disables persistence: Load returns nothing and Save is a no-op,
// since history is an optional convenience, not a correctness
// requirement (running jobs always come from the vertex's live state).
func NewHistoryStore(path string, log hclog.Logger) *HistoryStore {
	return &HistoryStore{path: path, log: log}
}

// Load reads the history file, treating a missing or corrupt file as
// empty history rather than a fatal error.
func (s *HistoryStore) Load() []HistoryRecord {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read job history, starting empty", "path", s.path, "error", err)
		}
		return nil
	}
	var records []HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn("job history corrupt, starting empty", "path", s.path, "error", err)
		return nil
	}
	return records
}

// Save atomically overwrites the history file.
func (s *HistoryStore) Save(records []HistoryRecord) error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".vertex-history-*")
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

// PersistHistoryPeriodically saves state's history to store once a
// minute until the returned stop function is called, which also
// performs one final save. The dispatcher persists its queue snapshot
// on the same kind of timer (dispatcher.Store); the vertex mirrors
// that rhythm for its own history file.
func PersistHistoryPeriodically(state *State, store *HistoryStore, log hclog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := store.Save(state.All()); err != nil {
					log.Warn("failed to persist job history on shutdown", "error", err)
				}
				return
			case <-ticker.C:
				if err := store.Save(state.All()); err != nil {
					log.Warn("failed to persist job history", "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

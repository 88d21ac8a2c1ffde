// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/qihexiang/jobs-dispatcher/job"
)

func TestHistoryStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	store := NewHistoryStore(path, hclog.NewNullLogger())

	records := []HistoryRecord{
		{User: "alice", TaskID: "task-1", Status: JobStatus{Kind: StatusFinished, Configuration: job.Configuration{Name: "n"}, EndedAt: time.Now().Unix()}},
	}
	require.NoError(t, store.Save(records))

	loaded := store.Load()
	require.Len(t, loaded, 1)
	require.Equal(t, "alice", loaded[0].User)
	require.Equal(t, StatusFinished, loaded[0].Status.Kind)
}

func TestHistoryStore_EmptyPathDisablesPersistence(t *testing.T) {
	store := NewHistoryStore("", hclog.NewNullLogger())
	require.NoError(t, store.Save([]HistoryRecord{{User: "x", TaskID: "y"}}))
	require.Nil(t, store.Load())
}

func TestHistoryStore_LoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store := NewHistoryStore(filepath.Join(dir, "missing.json"), hclog.NewNullLogger())
	require.Nil(t, store.Load())
}

func TestHistoryStore_LoadCorruptFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	store := NewHistoryStore(path, hclog.NewNullLogger())
	require.Nil(t, store.Load())
}

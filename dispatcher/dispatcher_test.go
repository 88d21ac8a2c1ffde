// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dispatcher

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/queue"
	"github.com/qihexiang/jobs-dispatcher/resources"
	"github.com/qihexiang/jobs-dispatcher/vertexclient"
)

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func simpleJob(uid uint32) job.Configuration {
	return job.Configuration{
		UID:  uid,
		Name: "test-job",
		Requirement: resources.Requirement{
			CPUs:       resources.Use(1),
			Mems:       resources.Auto(),
			Countables: resources.Countables{},
			Properties: resources.Properties{},
		},
	}
}

// fakeVertex is a minimal HTTP double of the vertex control plane,
// enough to exercise ControlLoop's free -> submit -> jobs sequence.
// Once a job has been submitted, /jobs reports it as running.
type fakeVertex struct {
	submitted int32
}

func (f *fakeVertex) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/free", func(w http.ResponseWriter, r *http.Request) {
		provider := resources.NewProvider([]int{0, 1}, []int{0}, resources.Countables{}, resources.Properties{})
		json.NewEncoder(w).Encode(provider)
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		jobs := map[string]any{}
		if atomic.LoadInt32(&f.submitted) > 0 {
			jobs["vertex-assigned-id"] = map[string]any{"kind": "running"}
		}
		json.NewEncoder(w).Encode(jobs)
	})
	mux.HandleFunc("/job/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.submitted, 1)
		w.Write([]byte("vertex-assigned-id"))
	})
	return mux
}

func TestControlLoop_TickDispatchesOneJob(t *testing.T) {
	fv := &fakeVertex{}
	server := httptest.NewServer(fv.handler())
	defer server.Close()

	q := queue.New("default", queue.Configuration{Users: queue.Deny(), Groups: queue.Deny()})
	taskID, err := q.Add(simpleJob(1000))
	require.NoError(t, err)
	q.RefreshJobs()

	group := queue.NewGroup(map[string]*queue.Queue{"default": q})

	cfg := Config{
		Vertexes: map[string]vertexclient.Config{
			"v1": {URL: server.URL},
		},
		MaxTimeout:   time.Second,
		LoopInterval: time.Millisecond,
		VertexLost:   time.Minute,
	}
	loop := NewControlLoop(cfg, group, testLogger())

	err = loop.Tick(context.Background())
	require.NoError(t, err)

	require.EqualValues(t, 1, atomic.LoadInt32(&fv.submitted))

	snapshot := group.Snapshot()
	require.Empty(t, snapshot["default"], "job should have left the pending list once committed")

	dq, ok := group.Queue("default")
	require.True(t, ok)
	require.Len(t, dq.Running(), 1)

	// Add returned a real task id; the empty pending list above shows it
	// is no longer pending.
	require.NotEqual(t, "", taskID)
}

func TestControlLoop_UnseenVertexGetsFirstChance(t *testing.T) {
	group := queue.NewGroup(map[string]*queue.Queue{"default": queue.New("default", queue.Configuration{})})
	cfg := Config{
		Vertexes: map[string]vertexclient.Config{
			"unreachable": {URL: "http://127.0.0.1:1"},
		},
		MaxTimeout:   50 * time.Millisecond,
		LoopInterval: time.Millisecond,
		VertexLost:   time.Minute,
	}
	loop := NewControlLoop(cfg, group, testLogger())

	// First tick fails to reach the vertex and returns an aggregate error.
	err := loop.Tick(context.Background())
	require.Error(t, err)

	// alive() still returns true since it was never seen — given a
	// first chance rather than skipped forever.
	require.True(t, loop.alive("unreachable"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	store := NewStore(path, testLogger())

	snapshot := map[string][]queue.Entry{
		"default": {{TaskID: "abc", Job: simpleJob(1000)}},
	}
	require.NoError(t, store.Save(snapshot))

	loaded := store.Load()
	require.Len(t, loaded["default"], 1)
	require.Equal(t, "abc", loaded["default"][0].TaskID)
}

func TestStore_LoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "does-not-exist.json"), testLogger())
	loaded := store.Load()
	require.Empty(t, loaded)
}

func TestStore_LoadCorruptFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	store := NewStore(path, testLogger())
	loaded := store.Load()
	require.Empty(t, loaded)
}

func TestAdminSocket_SubmitStatusDelete(t *testing.T) {
	q := queue.New("default", queue.Configuration{Users: queue.Deny(), Groups: queue.Deny()})
	group := queue.NewGroup(map[string]*queue.Queue{"default": q})

	dir := t.TempDir()
	sockPath := filepath.Join(dir, "admin.sock")
	admin, err := NewAdminSocket(sockPath, group, nil, testLogger())
	require.NoError(t, err)
	defer admin.Close()

	go admin.Serve()

	submitReq := Request{Kind: RequestSubmitJob, Queue: "default", Job: simpleJob(1000)}
	resp := roundTrip(t, sockPath, submitReq)
	require.Equal(t, ResponseSubmitSuccess, resp.Kind)
	require.NotEmpty(t, resp.TaskID)

	statusResp := roundTrip(t, sockPath, Request{Kind: RequestStatus})
	require.Equal(t, ResponseStatus, statusResp.Kind)
	require.Len(t, statusResp.Queues, 1)
	require.Equal(t, 1, statusResp.Queues[0].Pending)

	deleteResp := roundTrip(t, sockPath, Request{Kind: RequestDeleteJob, TaskID: resp.TaskID})
	require.Equal(t, ResponseDeleteSuccess, deleteResp.Kind)
}

func roundTrip(t *testing.T, sockPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, json.NewEncoder(conn).Encode(req))

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	return resp
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package vertex

import (
	"sync"

	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
)

// userTask keys the jobs map by (user, task_id), giving per-user
// filtering without a secondary index (spec §9).
type userTask struct {
	User   string
	TaskID string
}

// State is the vertex's live, shared mutable state: its static
// configuration plus every job it has ever run. It is shared between
// HTTP handlers and each job's waiter goroutine; every mutation takes
// the write lock (spec §5).
type State struct {
	Configuration Config

	mu   sync.RWMutex
	jobs map[userTask]JobStatus
}

// HistoryRecord is the on-disk shape of one (user, task_id) -> status
// entry. A Go map can't use a (string, string) tuple as a JSON object
// key, so history is persisted as a flat slice of records rather than
// the nested map the wire types elsewhere in this module use.
type HistoryRecord struct {
	User   string    `json:"user"`
	TaskID string    `json:"task_id"`
	Status JobStatus `json:"status"`
}

// NewState builds a State seeded with previously persisted history.
func NewState(cfg Config, history []HistoryRecord) *State {
	s := &State{Configuration: cfg, jobs: make(map[userTask]JobStatus, len(history))}
	for _, rec := range history {
		s.jobs[userTask{User: rec.User, TaskID: rec.TaskID}] = rec.Status
	}
	return s
}

func newKey(user, taskID string) userTask { return userTask{User: user, TaskID: taskID} }

// SetRunning records a newly-admitted job as running.
func (s *State) SetRunning(user, taskID string, j job.Configuration, startedAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[newKey(user, taskID)] = JobStatus{Kind: StatusRunning, Configuration: j, StartedAt: startedAt}
}

// SetFinished transitions a running job to Finished.
func (s *State) SetFinished(user, taskID string, j job.Configuration, endedAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[newKey(user, taskID)] = JobStatus{Kind: StatusFinished, Configuration: j, EndedAt: endedAt}
}

// SetError transitions a running job to Error.
func (s *State) SetError(user, taskID string, j job.Configuration, exitCode int, message string, endedAt int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[newKey(user, taskID)] = JobStatus{Kind: StatusError, Configuration: j, ExitCode: exitCode, Message: message, EndedAt: endedAt}
}

// JobsForUser returns every job status belonging to user, keyed by
// task id (GET /jobs, spec §4.7).
func (s *State) JobsForUser(user string) map[string]JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]JobStatus)
	for key, status := range s.jobs {
		if key.User == user {
			out[key.TaskID] = status
		}
	}
	return out
}

// RunningRequirements returns the requirement of every currently
// running job, for CurrentFree's subtraction (spec §4.8).
func (s *State) RunningRequirements() []resources.Requirement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []resources.Requirement
	for _, status := range s.jobs {
		if status.IsRunning() {
			out = append(out, status.Configuration.Requirement)
		}
	}
	return out
}

// All returns a snapshot of the full history, for persistence.
func (s *State) All() []HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryRecord, 0, len(s.jobs))
	for key, status := range s.jobs {
		out = append(out, HistoryRecord{User: key.User, TaskID: key.TaskID, Status: status})
	}
	return out
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package vertex implements the worker-host HTTP control plane: it
// accepts submitted jobs, admits them against its currently free
// resources, concretizes their node requirements, and launches a
// supervisor process per job, tracking each job's terminal status.
package vertex

import (
	"encoding/json"
	"fmt"

	"github.com/qihexiang/jobs-dispatcher/job"
)

// StatusKind tags the variant held by a JobStatus.
type StatusKind int

const (
	StatusRunning StatusKind = iota
	StatusFinished
	StatusError
)

// JobStatus is a vertex's terminal-or-not record for one job (spec's
// VertexJobStatus).
type JobStatus struct {
	Kind          StatusKind
	Configuration job.Configuration
	StartedAt     int64 // StatusRunning
	EndedAt       int64 // StatusFinished / StatusError
	ExitCode      int   // StatusError
	Message       string // StatusError
}

type wireStatus struct {
	Kind          string             `json:"kind"`
	Configuration job.Configuration  `json:"configuration"`
	StartedAt     int64              `json:"started_at,omitempty"`
	EndedAt       int64              `json:"ended_at,omitempty"`
	ExitCode      int                `json:"exit_code,omitempty"`
	Message       string             `json:"message,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	w := wireStatus{Configuration: s.Configuration}
	switch s.Kind {
	case StatusRunning:
		w.Kind, w.StartedAt = "running", s.StartedAt
	case StatusFinished:
		w.Kind, w.EndedAt = "finished", s.EndedAt
	case StatusError:
		w.Kind, w.EndedAt, w.ExitCode, w.Message = "error", s.EndedAt, s.ExitCode, s.Message
	default:
		return nil, fmt.Errorf("vertex: unknown status kind %d", s.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var w wireStatus
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.Configuration = w.Configuration
	switch w.Kind {
	case "running":
		s.Kind, s.StartedAt = StatusRunning, w.StartedAt
	case "finished":
		s.Kind, s.EndedAt = StatusFinished, w.EndedAt
	case "error":
		s.Kind, s.EndedAt, s.ExitCode, s.Message = StatusError, w.EndedAt, w.ExitCode, w.Message
	default:
		return fmt.Errorf("vertex: unknown status kind %q", w.Kind)
	}
	return nil
}

// IsRunning reports whether s represents a still-running job.
func (s JobStatus) IsRunning() bool { return s.Kind == StatusRunning }

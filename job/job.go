// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package job defines the immutable job model: the configuration a
// submitter hands to a queue, and the ordered phases that configuration
// executes once a vertex accepts it.
package job

import "github.com/qihexiang/jobs-dispatcher/resources"

// Configuration describes a job to run. It is immutable once queued:
// every transform used during admission (tag-mixin, credential
// override, node concretization) returns a new Configuration rather
// than mutating one in place.
type Configuration struct {
	UID         uint32                  `json:"uid"`
	GID         uint32                  `json:"gid"`
	Name        string                  `json:"name"`
	TimeLimit   uint64                  `json:"time_limit"` // seconds, 0 = no limit
	Requirement resources.Requirement   `json:"requirement"`
	StdoutFile  string                  `json:"stdout_file"`
	StderrFile  string                  `json:"stderr_file"`
	Phases      []Phase                 `json:"phases"`
}

// WithCredentials returns a copy of c with UID/GID overwritten — used
// by the admin socket to stop a non-superuser submitter from running a
// job as anyone but themselves (spec §4.6).
func (c Configuration) WithCredentials(uid, gid uint32) Configuration {
	out := c
	out.UID = uid
	out.GID = gid
	return out
}

// WithRequirement returns a copy of c with its requirement replaced —
// used by the queue to mix in tag properties on admission, and by the
// vertex to concretize Use/Auto node requirements on submit.
func (c Configuration) WithRequirement(r resources.Requirement) Configuration {
	out := c
	out.Requirement = r
	return out
}

// Clone returns a deep-enough copy of c safe to mutate independently
// (phases are immutable once built, so they are shared).
func (c Configuration) Clone() Configuration {
	out := c
	out.Phases = append([]Phase(nil), c.Phases...)
	return out
}

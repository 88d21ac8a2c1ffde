// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build !linux

package supervisor

import (
	"errors"

	"github.com/hashicorp/go-hclog"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// New fails unconditionally: cgroups and privilege-drop credentials
// are Linux-only primitives (spec §9).
func New(log hclog.Logger) (*Supervisor, error) {
	return nil, errors.New("supervisor: cgroup-based job supervision is only supported on linux")
}

// Run never executes; New always fails first.
func (s *Supervisor) Run(taskID string, cfg job.Configuration) error {
	return errors.New("supervisor: cgroup-based job supervision is only supported on linux")
}

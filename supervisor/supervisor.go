// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package supervisor builds a per-job cgroup, drops to the job's
// uid/gid, spawns the executor re-exec, bounds it by the job's time
// limit, and tears the cgroup down on exit (spec §4.9). A Supervisor
// is created fresh for every job; it owns no state past one Run call.
package supervisor

import (
	"github.com/hashicorp/go-hclog"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// Supervisor runs exactly one job to completion.
type Supervisor struct {
	log     hclog.Logger
	selfExe string
}

// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

//go:build linux

package supervisor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/qihexiang/jobs-dispatcher/job"
	"github.com/qihexiang/jobs-dispatcher/resources"
)

// requireCgroupCapable skips the test unless running as root with a
// writable unified cgroup hierarchy — building and joining a real
// cgroup is not possible in an unprivileged sandbox (matches the
// driver tests' own testutil.CgroupsCompatible gate).
func requireCgroupCapable(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root to create cgroups")
	}
	if _, err := os.Stat("/sys/fs/cgroup/cgroup.controllers"); err != nil {
		t.Skip("requires a unified (v2) cgroup hierarchy")
	}
}

func TestSupervisor_RunExecutesJobAndTearsDownCgroup(t *testing.T) {
	requireCgroupCapable(t)

	dir := t.TempDir()
	stdout := filepath.Join(dir, "stdout.log")
	stderr := filepath.Join(dir, "stderr.log")

	cfg := job.Configuration{
		UID:        uint32(os.Getuid()),
		GID:        uint32(os.Getgid()),
		Name:       "supervisor-smoke-test",
		TimeLimit:  5,
		StdoutFile: stdout,
		StderrFile: stderr,
		Requirement: resources.Requirement{
			CPUs:       resources.Auto(),
			Mems:       resources.Auto(),
			Countables: resources.Countables{"memory": 64 * 1024 * 1024},
		},
		Phases: []job.Phase{job.NewRun([]string{"/bin/true"})},
	}

	sup, err := New(hclog.NewNullLogger())
	require.NoError(t, err)

	err = sup.Run("supervisor-test-task", cfg)
	require.NoError(t, err)
}

func TestSupervisor_RunPropagatesTimeLimit(t *testing.T) {
	requireCgroupCapable(t)

	dir := t.TempDir()
	cfg := job.Configuration{
		UID:        uint32(os.Getuid()),
		GID:        uint32(os.Getgid()),
		Name:       "supervisor-timeout-test",
		TimeLimit:  1,
		StdoutFile: filepath.Join(dir, "stdout.log"),
		StderrFile: filepath.Join(dir, "stderr.log"),
		Requirement: resources.Requirement{
			CPUs:       resources.Auto(),
			Mems:       resources.Auto(),
			Countables: resources.Countables{"memory": 64 * 1024 * 1024},
		},
		Phases: []job.Phase{job.NewRun([]string{"/bin/sleep", "10"})},
	}

	sup, err := New(hclog.NewNullLogger())
	require.NoError(t, err)

	err = sup.Run("supervisor-timeout-task", cfg)
	require.Error(t, err)
}

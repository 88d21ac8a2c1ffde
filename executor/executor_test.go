// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/qihexiang/jobs-dispatcher/job"
)

func TestRun_WorkDirEnvAndShPhases(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(cwd) })

	dir := t.TempDir()
	marker := filepath.Join(dir, "marker.txt")

	cfg := job.Configuration{
		Phases: []job.Phase{
			job.NewWorkDir(dir),
			job.NewEnv(map[string]string{"MARKER_NAME": "marker.txt"}),
			job.NewSh(`echo hello > "$MARKER_NAME"`),
		},
	}

	transcript, err := Run(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	require.Contains(t, transcript, "cd to "+dir)
	require.Contains(t, transcript, "1 environment variables set")

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
}

func TestRun_RunPhaseFailureStopsExecution(t *testing.T) {
	cfg := job.Configuration{
		Phases: []job.Phase{
			job.NewRun([]string{"/bin/false"}),
			job.NewSh("echo should-not-run"),
		},
	}

	transcript, err := Run(cfg, hclog.NewNullLogger())
	require.Error(t, err)
	require.NotContains(t, transcript, "should-not-run")
}

func TestRun_UnknownArgvIsAnError(t *testing.T) {
	cfg := job.Configuration{
		Phases: []job.Phase{job.NewRun([]string{"/no/such/binary"})},
	}
	_, err := Run(cfg, hclog.NewNullLogger())
	require.Error(t, err)
}

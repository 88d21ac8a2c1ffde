// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package executor runs a job's phases in-process, already confined to
// the cgroup and uid/gid the supervisor prepared (spec §4.9). It is
// invoked as a re-exec of the dispatcher binary ("fleet executor
// <json>"), never linked directly into the supervisor, so
// that a phase's os.Exit or fatal signal can never take the supervisor
// down with it.
package executor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/qihexiang/jobs-dispatcher/job"
)

// Run executes every phase of cfg in order, stopping at the first
// failure. It returns the transcript of the phases that ran (a summary
// line for each WorkDir/Env phase, the captured stdout/stderr of each
// SH/RUN phase) and a non-nil error if any phase failed.
func Run(cfg job.Configuration, log hclog.Logger) (string, error) {
	var transcript bytes.Buffer
	for i, phase := range cfg.Phases {
		out, err := runPhase(phase)
		transcript.WriteString(out)
		if err != nil {
			log.Error("phase failed", "index", i, "kind", phase.Kind, "error", err)
			return transcript.String(), fmt.Errorf("executor: phase %d: %w", i, err)
		}
	}
	return transcript.String(), nil
}

func runPhase(phase job.Phase) (string, error) {
	switch phase.Kind {
	case job.PhaseWorkDir:
		if err := os.Chdir(phase.WorkDir); err != nil {
			return "", err
		}
		return fmt.Sprintf("cd to %s\n", phase.WorkDir), nil

	case job.PhaseEnv:
		for k, v := range phase.Env {
			if err := os.Setenv(k, v); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%d environment variables set\n", len(phase.Env)), nil

	case job.PhaseSh:
		return runCommand(exec.Command("bash", "-c", phase.Script))

	case job.PhaseRun:
		if len(phase.Argv) == 0 {
			return "", fmt.Errorf("executor: run phase has no argv")
		}
		return runCommand(exec.Command(phase.Argv[0], phase.Argv[1:]...))

	default:
		return "", fmt.Errorf("executor: unknown phase kind %d", phase.Kind)
	}
}

// runCommand executes cmd inheriting the process's (already dropped)
// uid/gid and cgroup membership, and renders its combined output the
// way the dispatcher's own log transcript format expects.
func runCommand(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	rendered := fmt.Sprintf("stdout:\n=====\n%s\n<<<<<\nstderr:\n=====\n%s\n<<<<<\n", stdout.String(), stderr.String())
	return rendered, err
}
